package pagedriver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/Zeebrow/ec2-price-tracker/internal/ec2err"
	"github.com/Zeebrow/ec2-price-tracker/internal/obslog"
	"github.com/Zeebrow/ec2-price-tracker/internal/record"
)

const pricingURL = "https://aws.amazon.com/ec2/pricing/on-demand/"
const pricingIframeID = "iFrameResizer0"
const onDemandSectionLabel = "On-Demand Pricing"

// regionPattern discards decorative dropdown entries (e.g. "Choose a
// Region") that do not look like an actual region identifier.
var regionPattern = regexp.MustCompile(`^[a-z]{2}-(gov-)?[a-z]+-[1-9]$`)

// operationTimeout bounds every individual page interaction, per spec §5's
// "per-operation visibility-wait timeout (bounded, ≤30 s)".
const operationTimeout = 30 * time.Second

// settleDelay is the small fixed pause after every interaction, mirroring
// the Python original's habit of giving the page's own animations and
// re-renders a moment to finish before the next read.
const settleDelay = 500 * time.Millisecond

// dropdown is the typed representation of one discovered filter control,
// replacing string concatenation of selectors at call sites (spec §9).
type dropdown struct {
	button  *rod.Element
	options *rod.Element
}

// RodDriver drives the real AWS EC2 on-demand pricing page with a headless
// Chrome session via go-rod, launched the same way the teacher's
// internal/services/plotly renderer launches its headless session.
type RodDriver struct {
	browser   *rod.Browser
	page      *rod.Page
	dropdowns map[string]dropdown
	state     TableState
}

// NewRodDriver launches a headless Chrome session, navigates to the
// pricing page, locates its iframe, and discovers the filter dropdowns.
// The returned driver owns the browser for its entire lifetime; callers
// must Close it.
func NewRodDriver(ctx context.Context) (*RodDriver, error) {
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage")

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launching browser: %v", ec2err.ErrDriver, err)
	}

	browser := rod.New().ControlURL(launchURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: connecting to browser: %v", ec2err.ErrDriver, err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("%w: opening stealth page: %v", ec2err.ErrDriver, err)
	}

	d := &RodDriver{browser: browser, page: page, state: StateUnfiltered}
	if err := d.prepPage(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *RodDriver) prepPage(ctx context.Context) error {
	if err := d.page.Context(ctx).Timeout(operationTimeout).Navigate(pricingURL); err != nil {
		return fmt.Errorf("%w: navigating to pricing page: %v", ec2err.ErrDriver, err)
	}
	if err := d.page.WaitLoad(); err != nil {
		return fmt.Errorf("%w: waiting for page load: %v", ec2err.ErrDriver, err)
	}

	sidebar, err := d.page.Timeout(operationTimeout).ElementR("a, button, span", onDemandSectionLabel)
	if err != nil {
		return fmt.Errorf("%w: locating %q section: %v", ec2err.ErrDriver, onDemandSectionLabel, err)
	}
	if err := sidebar.ScrollIntoView(); err != nil {
		return fmt.Errorf("%w: scrolling to pricing section: %v", ec2err.ErrDriver, err)
	}
	time.Sleep(settleDelay)

	iframeEl, err := d.page.Timeout(operationTimeout).ElementX(fmt.Sprintf(`//iframe[@id="%s"]`, pricingIframeID))
	if err != nil {
		return fmt.Errorf("%w: locating pricing iframe: %v", ec2err.ErrDriver, err)
	}
	iframe, err := iframeEl.Frame()
	if err != nil {
		return fmt.Errorf("%w: entering pricing iframe: %v", ec2err.ErrDriver, err)
	}
	d.page = iframe
	time.Sleep(settleDelay)

	if err := d.discoverDropdowns(); err != nil {
		return err
	}
	return nil
}

// discoverDropdowns scans attribute-tagged containers rather than relying
// on brittle positional indices, mirroring the Python original's
// get_dropdown_menu_map.
func (d *RodDriver) discoverDropdowns() error {
	labeled, err := d.page.Timeout(operationTimeout).Elements(`[data-analytics-field-label]`)
	if err != nil {
		return fmt.Errorf("%w: scanning dropdown labels: %v", ec2err.ErrDriver, err)
	}

	found := make(map[string]dropdown, len(labeled))
	for _, el := range labeled {
		label, err := el.Attribute("data-analytics-field-label")
		if err != nil || label == nil {
			continue
		}
		category := strings.TrimSpace(*label)
		if category == "" {
			continue
		}
		button, err := el.Element(`button`)
		if err != nil {
			continue
		}
		options, err := el.Element(`[role="listbox"], ul`)
		if err != nil {
			continue
		}
		found[category] = dropdown{button: button, options: options}
	}
	d.dropdowns = found
	return nil
}

func (d *RodDriver) optionTexts(category string) ([]string, error) {
	dd, ok := d.dropdowns[category]
	if !ok {
		return nil, fmt.Errorf("%w: no dropdown discovered for category %q", ec2err.ErrCatalog, category)
	}
	items, err := dd.options.Elements(`li`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing options for %q: %v", ec2err.ErrCatalog, category, err)
	}
	texts := make([]string, 0, len(items))
	for _, item := range items {
		text, err := item.Text()
		if err != nil {
			continue
		}
		texts = append(texts, strings.TrimSpace(text))
	}
	return texts, nil
}

// ListOperatingSystems implements Driver.
func (d *RodDriver) ListOperatingSystems(ctx context.Context) ([]string, error) {
	return d.optionTexts("Operating System")
}

// ListRegions implements Driver. Decorative entries that do not match the
// region identifier shape are discarded.
func (d *RodDriver) ListRegions(ctx context.Context) ([]string, error) {
	raw, err := d.optionTexts("Region")
	if err != nil {
		return nil, err
	}
	regions := make([]string, 0, len(raw))
	for _, r := range raw {
		if regionPattern.MatchString(r) {
			regions = append(regions, r)
		}
	}
	return regions, nil
}

// SelectOperatingSystem implements Driver.
func (d *RodDriver) SelectOperatingSystem(ctx context.Context, name string) error {
	if err := d.selectOption("Operating System", name); err != nil {
		return err
	}
	d.state = StateFiltered
	return nil
}

// SelectRegion implements Driver.
func (d *RodDriver) SelectRegion(ctx context.Context, name string) error {
	if err := d.selectOption("Region", name); err != nil {
		return err
	}
	d.state = StateFiltered
	return nil
}

func (d *RodDriver) selectOption(category, name string) error {
	dd, ok := d.dropdowns[category]
	if !ok {
		return fmt.Errorf("%w: no dropdown discovered for category %q", ec2err.ErrCatalog, category)
	}
	if err := dd.button.Timeout(operationTimeout).Click("left", 1); err != nil {
		return fmt.Errorf("%w: opening %q dropdown: %v", ec2err.ErrDriver, category, err)
	}
	time.Sleep(settleDelay)

	items, err := dd.options.Elements(`li`)
	if err != nil {
		return fmt.Errorf("%w: listing %q options: %v", ec2err.ErrDriver, category, err)
	}
	for _, item := range items {
		text, err := item.Text()
		if err != nil {
			continue
		}
		if strings.Contains(text, name) {
			if err := item.Click("left", 1); err != nil {
				return fmt.Errorf("%w: clicking %q option %q: %v", ec2err.ErrDriver, category, name, err)
			}
			time.Sleep(settleDelay)
			return nil
		}
	}
	if category == "Operating System" {
		return fmt.Errorf("%w: unknown operating system %q", ec2err.ErrCatalog, name)
	}
	return fmt.Errorf("%w: unknown region %q", ec2err.ErrCatalog, name)
}

// IterateRows implements Driver. It resets to page 1 explicitly (pages may
// start on an arbitrary index after a filter change), reads the total page
// count, and walks every page in order, clicking "next" between pages but
// never past the last one.
func (d *RodDriver) IterateRows(ctx context.Context) ([]record.RawRow, error) {
	d.state = StateIterating
	defer func() { d.state = StateFiltered }()

	root, err := d.page.Timeout(operationTimeout).Element(`[data-selection-root]`)
	if err != nil {
		return nil, fmt.Errorf("%w: locating table root: %v", ec2err.ErrDriver, err)
	}

	if err := resetToFirstPage(root); err != nil {
		return nil, err
	}

	totalPages, err := readTotalPages(root)
	if err != nil {
		return nil, err
	}

	var rows []record.RawRow
	for i := 0; i < totalPages; i++ {
		if i > 0 {
			if err := clickNextPage(root); err != nil {
				return nil, err
			}
		}
		pageRows, err := readVisibleRows(root)
		if err != nil {
			return nil, err
		}
		rows = append(rows, pageRows...)
	}
	return rows, nil
}

func resetToFirstPage(root *rod.Element) error {
	first, err := root.Timeout(operationTimeout).Element(`[aria-label="First Page"], [data-testid="pagination-first"]`)
	if err != nil {
		// already on the first page if no "first" control is present
		return nil
	}
	if err := first.Click("left", 1); err != nil {
		return fmt.Errorf("%w: resetting to first page: %v", ec2err.ErrDriver, err)
	}
	time.Sleep(settleDelay)
	return nil
}

func readTotalPages(root *rod.Element) (int, error) {
	el, err := root.Timeout(operationTimeout).Element(`[data-testid="pagination-total"]`)
	if err != nil {
		return 1, nil
	}
	text, err := el.Text()
	if err != nil {
		return 0, fmt.Errorf("%w: reading total page count: %v", ec2err.ErrDriver, err)
	}
	var total int
	if _, err := fmt.Sscanf(strings.TrimSpace(text), "%d", &total); err != nil || total < 1 {
		return 1, nil
	}
	return total, nil
}

func clickNextPage(root *rod.Element) error {
	next, err := root.Timeout(operationTimeout).Element(`[aria-label="Next Page"], [data-testid="pagination-next"]`)
	if err != nil {
		return fmt.Errorf("%w: locating next-page control: %v", ec2err.ErrDriver, err)
	}
	if err := next.Click("left", 1); err != nil {
		return fmt.Errorf("%w: clicking next page: %v", ec2err.ErrDriver, err)
	}
	time.Sleep(settleDelay)
	return nil
}

func readVisibleRows(root *rod.Element) ([]record.RawRow, error) {
	trs, err := root.Timeout(operationTimeout).Elements(`tbody tr`)
	if err != nil {
		return nil, fmt.Errorf("%w: reading table rows: %v", ec2err.ErrDriver, err)
	}
	rows := make([]record.RawRow, 0, len(trs))
	for _, tr := range trs {
		cells, err := tr.Elements(`td`)
		if err != nil || len(cells) < 6 {
			return nil, fmt.Errorf("%w: row has %d cells, expected 6", ec2err.ErrDriver, len(cells))
		}
		texts := make([]string, 6)
		for i := 0; i < 6; i++ {
			t, err := cells[i].Text()
			if err != nil {
				return nil, fmt.Errorf("%w: reading cell %d: %v", ec2err.ErrDriver, i, err)
			}
			texts[i] = strings.TrimSpace(t)
		}
		rows = append(rows, record.RawRow{
			InstanceType:       texts[0],
			HourlyRate:         texts[1],
			VCPU:               texts[2],
			Memory:             texts[3],
			StorageDescription: texts[4],
			NetworkDescription: texts[5],
		})
	}
	return rows, nil
}

// Close implements Driver.
func (d *RodDriver) Close() error {
	if d.browser == nil {
		return nil
	}
	if err := d.browser.Close(); err != nil {
		obslog.Get().WithError(err).Warn("closing browser session")
		return err
	}
	d.browser = nil
	return nil
}
