package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

const (
	defaultPromoURL = "https://ggpoker.com/promotions/omaha-daily-leaderboard/"

	dropdownSelector  = ".dropdown-layer"
	dropdownToggle    = ".blind-text"
	rankingBody       = ".playerRankingBody"
	dropdownOpenClass = "layer-open"

	// How long to wait for the ranking table to settle after selecting a
	// blind level. The page re-renders the rows a few times while the
	// backing request resolves.
	tableSettleTimeout = 25 * time.Second
	tableSettlePoll    = 500 * time.Millisecond
)

// scrapeMutex guards against overlapping passes. A pass that is still
// running when the next tick or a manual trigger arrives wins; the new
// attempt is skipped, not queued.
var scrapeMutex sync.Mutex

// NavigationError means the scraper could not reach the ranking widget
// at all. The whole pass is abandoned and no batch is written.
type NavigationError struct {
	Step string
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed at %s: %v", e.Step, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExtractionError means one blind-level filter could not be read. The
// pass continues with the remaining filters.
type ExtractionError struct {
	Filter string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for filter '%s': %v", e.Filter, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// rankingSession is one live visit to the leaderboard widget. The
// production implementation drives a headless Chrome; tests substitute
// a canned one.
type rankingSession interface {
	Open(ctx context.Context) error
	FilterOptions(ctx context.Context) ([]filterOption, error)
	SelectFilter(ctx context.Context, opt filterOption) error
	ExtractRows(ctx context.Context) ([]RankingRow, error)
	Close()
}

// browserSession drives a real headless Chrome via chromedp.
type browserSession struct {
	promoURL    string
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context
}

func newBrowserSession() *browserSession {
	return &browserSession{promoURL: envOrDefault("SCRAPE_URL", defaultPromoURL)}
}

func (s *browserSession) Open(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", envOrDefault("HEADLESS", "true") != "false"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
	)
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)
	s.allocCancel = allocCancel
	s.tabCancel = tabCancel
	s.tab = tab

	if err := chromedp.Run(tab, chromedp.Navigate(s.promoURL)); err != nil {
		return &NavigationError{Step: "promo page", Err: err}
	}

	// The ranking widget lives in an iframe inside the section whose
	// heading names the PLO promotion. Resolve its src and open it
	// directly; driving the iframe document through the parent page is
	// far more fragile.
	var frameSrc string
	findFrame := `(() => {
		const heads = Array.from(document.querySelectorAll('h4'));
		const head = heads.find(h => h.textContent.includes('PLO'));
		if (!head) return '';
		const section = head.closest('section') || head.parentElement;
		const frame = section ? section.querySelector('iframe') : null;
		return frame ? frame.src : '';
	})()`
	if err := chromedp.Run(tab, chromedp.Evaluate(findFrame, &frameSrc)); err != nil {
		return &NavigationError{Step: "locating ranking iframe", Err: err}
	}
	if frameSrc == "" {
		return &NavigationError{Step: "locating ranking iframe", Err: errors.New("no iframe under the PLO heading")}
	}

	err := chromedp.Run(tab,
		chromedp.Navigate(frameSrc),
		chromedp.WaitVisible(dropdownSelector, chromedp.ByQuery),
	)
	if err != nil {
		return &NavigationError{Step: "ranking widget", Err: err}
	}
	return nil
}

func (s *browserSession) FilterOptions(ctx context.Context) ([]filterOption, error) {
	var html string
	err := chromedp.Run(s.tab, chromedp.OuterHTML(dropdownSelector, &html, chromedp.ByQuery))
	if err != nil {
		return nil, &NavigationError{Step: "reading filter dropdown", Err: err}
	}
	opts, err := parseFilterOptions(html)
	if err != nil {
		return nil, &NavigationError{Step: "reading filter dropdown", Err: err}
	}
	return opts, nil
}

func (s *browserSession) SelectFilter(ctx context.Context, opt filterOption) error {
	// The dropdown only accepts clicks while its layer is open, and it
	// closes itself after each selection.
	ensureOpen := fmt.Sprintf(`(() => {
		const layer = document.querySelector('%s');
		if (!layer) return false;
		if (!layer.classList.contains('%s')) {
			const toggle = document.querySelector('%s');
			if (toggle) toggle.click();
		}
		return true;
	})()`, dropdownSelector, dropdownOpenClass, dropdownToggle)
	var ok bool
	if err := chromedp.Run(s.tab, chromedp.Evaluate(ensureOpen, &ok)); err != nil {
		return &ExtractionError{Filter: opt.Label, Err: err}
	}
	if !ok {
		return &ExtractionError{Filter: opt.Label, Err: errors.New("dropdown disappeared")}
	}

	clickItem := fmt.Sprintf(`(() => {
		const items = document.querySelectorAll('%s li');
		if (items.length <= %d) return false;
		items[%d].click();
		return true;
	})()`, dropdownSelector, opt.Index, opt.Index)
	if err := chromedp.Run(s.tab, chromedp.Evaluate(clickItem, &ok)); err != nil {
		return &ExtractionError{Filter: opt.Label, Err: err}
	}
	if !ok {
		return &ExtractionError{Filter: opt.Label, Err: fmt.Errorf("dropdown item %d missing", opt.Index)}
	}
	return nil
}

func (s *browserSession) ExtractRows(ctx context.Context) ([]RankingRow, error) {
	// The table repaints while the widget loads, so a single read can
	// catch it half rendered. Poll until two consecutive reads agree on
	// a non-empty row set.
	deadline := time.Now().Add(tableSettleTimeout)
	prevCount := -1
	for {
		var html string
		err := chromedp.Run(s.tab, chromedp.OuterHTML(rankingBody, &html, chromedp.ByQuery))
		if err != nil {
			return nil, err
		}
		rows, skipped, err := parseRankingTable(html)
		if err == nil && len(rows) > 0 && len(rows) == prevCount {
			if skipped > 0 {
				log.Printf("[W] [Scraper] Skipped %d malformed rows in current table", skipped)
			}
			return rows, nil
		}
		if err == nil {
			prevCount = len(rows)
		}
		if time.Now().After(deadline) {
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("ranking table never settled (%d rows)", prevCount)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(tableSettlePoll):
		}
	}
}

func (s *browserSession) Close() {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// parseFilterOptions reads the blind-level labels out of the dropdown
// markup, in on-page order.
func parseFilterOptions(html string) ([]filterOption, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var opts []filterOption
	doc.Find("li").Each(func(i int, sel *goquery.Selection) {
		label := strings.TrimSpace(sel.Text())
		if label == "" {
			return
		}
		opts = append(opts, filterOption{Index: i, Label: label})
	})
	if len(opts) == 0 {
		return nil, errors.New("dropdown has no options")
	}
	return opts, nil
}

// parseRankingTable turns the table body markup into rows. Rows whose
// player cell is empty or whose points cell does not parse are counted
// and dropped; one bad row never sinks the filter.
func parseRankingTable(html string) ([]RankingRow, int, error) {
	// The fragment is a bare tbody; without a table around it the HTML5
	// parser silently discards the row elements.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table>" + html + "</table>"))
	if err != nil {
		return nil, 0, err
	}
	var rows []RankingRow
	skipped := 0
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 4 {
			skipped++
			return
		}
		player := strings.TrimSpace(cells.Eq(1).Text())
		if player == "" {
			skipped++
			return
		}
		points, err := parsePoints(cells.Eq(3).Text())
		if err != nil {
			skipped++
			return
		}
		rank := 0
		if r, err := strconv.Atoi(strings.TrimSpace(cells.Eq(0).Text())); err == nil {
			rank = r
		}
		row := RankingRow{Rank: rank, Player: player, Points: points}
		// The flag sprite carries the country name in its title when the
		// site knows it.
		if title, ok := cells.Eq(2).Find("[title]").Attr("title"); ok {
			row.Country = strings.TrimSpace(title)
		}
		rows = append(rows, row)
	})
	return rows, skipped, nil
}

// parsePoints handles the page's formatted numbers: "1,181.00",
// "$2,000", stray spaces and non-breaking spaces.
func parsePoints(raw string) (float64, error) {
	cleaned := strings.NewReplacer(",", "", "$", "", " ", "", " ", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, errors.New("empty points cell")
	}
	return strconv.ParseFloat(cleaned, 64)
}

// runScrapePass performs one complete pass over every blind level and
// persists the result as a single batch. Individual filters may fail
// and be skipped; if none succeed, or navigation fails outright, no
// batch is written.
func runScrapePass(ctx context.Context, d *Database, session rankingSession) (*PassSummary, error) {
	start := time.Now()
	defer session.Close()

	if err := session.Open(ctx); err != nil {
		return nil, err
	}
	options, err := session.FilterOptions(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[I] [Scraper] Found %d blind-level filters", len(options))

	var results []FilterResult
	skippedFilters := 0
	for _, opt := range options {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := session.SelectFilter(ctx, opt); err != nil {
			log.Printf("[W] [Scraper] %v, skipping", err)
			skippedFilters++
			continue
		}
		rows, err := session.ExtractRows(ctx)
		if err != nil {
			extractErr := &ExtractionError{Filter: opt.Label, Err: err}
			log.Printf("[W] [Scraper] %v, skipping", extractErr)
			skippedFilters++
			continue
		}
		log.Printf("[I] [Scraper] Filter '%s': %d rows", opt.Label, len(rows))
		results = append(results, FilterResult{Label: opt.Label, Rows: rows})
	}

	if len(results) == 0 {
		return nil, &NavigationError{Step: "all filters", Err: errors.New("every filter failed to extract")}
	}

	when := time.Now()
	batchID, stored, skippedRows, err := saveScrapePass(d, when, results)
	if err != nil {
		return nil, err
	}

	return &PassSummary{
		BatchID:        batchID,
		Timestamp:      when.UTC().Format(time.RFC3339),
		FiltersScraped: len(results),
		FiltersSkipped: skippedFilters,
		RowsStored:     stored,
		RowsSkipped:    skippedRows,
		Duration:       time.Since(start).Round(time.Millisecond),
	}, nil
}

// scrapeAndNotify is the job body: one guarded pass plus the optional
// Discord report. Returns false when another pass was already running.
func scrapeAndNotify(ctx context.Context, d *Database) bool {
	if !scrapeMutex.TryLock() {
		log.Println("[W] [Scraper] Previous pass still running, skipping this one")
		return false
	}
	runLockedPass(ctx, d)
	return true
}

// tryStartScrape backs the manual trigger: it claims the pass lock and,
// if successful, runs the pass in the background.
func tryStartScrape(ctx context.Context, d *Database) bool {
	if !scrapeMutex.TryLock() {
		return false
	}
	go runLockedPass(ctx, d)
	return true
}

// runLockedPass assumes the caller holds scrapeMutex and releases it.
func runLockedPass(ctx context.Context, d *Database) {
	defer scrapeMutex.Unlock()

	summary, err := runScrapePass(ctx, d, newBrowserSession())
	if err != nil {
		log.Printf("[E] [Scraper] Pass failed: %v", err)
		return
	}
	log.Printf("[I] [Scraper] Pass done: batch #%d, %d filters (%d skipped), %d rows stored in %s",
		summary.BatchID, summary.FiltersScraped, summary.FiltersSkipped, summary.RowsStored, summary.Duration)
	notifyPassSummary(summary)
}

// Job is a named background task with its own cadence.
type Job struct {
	Name     string
	Func     func(ctx context.Context)
	Interval time.Duration
}

// runJobOnTicker runs the job once immediately, then on every tick
// until the context is cancelled.
func runJobOnTicker(ctx context.Context, job Job) {
	log.Printf("[I] [Jobs] Starting '%s' every %s", job.Name, job.Interval)
	job.Func(ctx)
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[I] [Jobs] Stopping '%s'", job.Name)
			return
		case <-ticker.C:
			job.Func(ctx)
		}
	}
}

// startBackgroundJobs launches the periodic scraper.
func startBackgroundJobs(ctx context.Context, d *Database, interval time.Duration) {
	jobs := []Job{
		{
			Name:     "leaderboard scrape",
			Func:     func(ctx context.Context) { scrapeAndNotify(ctx, d) },
			Interval: interval,
		},
	}
	for _, job := range jobs {
		go runJobOnTicker(ctx, job)
	}
}
