package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession plays back canned filters and rows in place of a real
// browser.
type fakeSession struct {
	openErr    error
	filters    []filterOption
	filtersErr error
	rows       map[int][]RankingRow
	rowsErr    map[int]error
	selectErr  map[int]error
	current    int
	closed     bool
}

func (f *fakeSession) Open(ctx context.Context) error { return f.openErr }

func (f *fakeSession) FilterOptions(ctx context.Context) ([]filterOption, error) {
	return f.filters, f.filtersErr
}

func (f *fakeSession) SelectFilter(ctx context.Context, opt filterOption) error {
	f.current = opt.Index
	if err := f.selectErr[opt.Index]; err != nil {
		return err
	}
	return nil
}

func (f *fakeSession) ExtractRows(ctx context.Context) ([]RankingRow, error) {
	if err := f.rowsErr[f.current]; err != nil {
		return nil, err
	}
	return f.rows[f.current], nil
}

func (f *fakeSession) Close() { f.closed = true }

func TestRunScrapePass(t *testing.T) {
	d := newTestDB(t)
	session := &fakeSession{
		filters: []filterOption{{0, "NL2"}, {1, "NL5"}},
		rows: map[int][]RankingRow{
			0: {{Rank: 1, Player: "alice", Points: 100}, {Rank: 2, Player: "bob", Points: 90}},
			1: {{Rank: 1, Player: "carol", Points: 50}},
		},
	}

	summary, err := runScrapePass(context.Background(), d, session)
	require.NoError(t, err)
	assert.True(t, session.closed)
	assert.Equal(t, 2, summary.FiltersScraped)
	assert.Equal(t, 0, summary.FiltersSkipped)
	assert.Equal(t, 3, summary.RowsStored)

	names, err := leaderboardNames(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"NL2", "NL5"}, names)
}

func TestRunScrapePassSkipsFailingFilter(t *testing.T) {
	d := newTestDB(t)
	session := &fakeSession{
		filters: []filterOption{{0, "NL2"}, {1, "NL5"}},
		rows: map[int][]RankingRow{
			1: {{Rank: 1, Player: "carol", Points: 50}},
		},
		rowsErr: map[int]error{0: errors.New("table never settled")},
	}

	summary, err := runScrapePass(context.Background(), d, session)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FiltersScraped)
	assert.Equal(t, 1, summary.FiltersSkipped)

	// The failed filter is absent from the batch entirely.
	names, err := leaderboardNames(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"NL5"}, names)
}

func TestRunScrapePassNavigationFailure(t *testing.T) {
	d := newTestDB(t)
	session := &fakeSession{openErr: &NavigationError{Step: "promo page", Err: errors.New("timeout")}}

	_, err := runScrapePass(context.Background(), d, session)
	var navErr *NavigationError
	require.ErrorAs(t, err, &navErr)

	// No batch is ever written on a navigation failure.
	var batches int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM update_batch`).Scan(&batches))
	assert.Zero(t, batches)
}

func TestRunScrapePassAllFiltersFail(t *testing.T) {
	d := newTestDB(t)
	session := &fakeSession{
		filters: []filterOption{{0, "NL2"}, {1, "NL5"}},
		rowsErr: map[int]error{
			0: errors.New("boom"),
			1: errors.New("boom"),
		},
	}

	_, err := runScrapePass(context.Background(), d, session)
	var navErr *NavigationError
	require.ErrorAs(t, err, &navErr)

	var batches int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM update_batch`).Scan(&batches))
	assert.Zero(t, batches)
}

func TestParseFilterOptions(t *testing.T) {
	html := `<div class="dropdown-layer"><ul>
		<li>NL2 Daily</li>
		<li> NL5 Daily </li>
		<li></li>
		<li>NL10+ Daily</li>
	</ul></div>`

	opts, err := parseFilterOptions(html)
	require.NoError(t, err)
	require.Len(t, opts, 3)
	assert.Equal(t, filterOption{0, "NL2 Daily"}, opts[0])
	assert.Equal(t, filterOption{1, "NL5 Daily"}, opts[1])
	assert.Equal(t, filterOption{3, "NL10+ Daily"}, opts[2])

	_, err = parseFilterOptions(`<div class="dropdown-layer"></div>`)
	require.Error(t, err)
}

func TestParseRankingTable(t *testing.T) {
	html := `<tbody class="playerRankingBody">
		<tr>
			<td>1</td><td>alice</td><td><i class="flag" title="Brazil"></i></td><td>1,181.00</td>
		</tr>
		<tr>
			<td>2</td><td>bob</td><td></td><td>$900.50</td>
		</tr>
		<tr>
			<td>3</td><td></td><td></td><td>100</td>
		</tr>
		<tr>
			<td>4</td><td>mallory</td><td></td><td>n/a</td>
		</tr>
	</tbody>`

	rows, skipped, err := parseRankingTable(html)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, rows, 2)
	assert.Equal(t, RankingRow{Rank: 1, Player: "alice", Country: "Brazil", Points: 1181}, rows[0])
	assert.Equal(t, RankingRow{Rank: 2, Player: "bob", Points: 900.5}, rows[1])
}

func TestParsePoints(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1,181.00", 1181},
		{"$2,000", 2000},
		{" 42 ", 42},
		{"1 500.25", 1500.25},
		{"0", 0},
	}
	for _, c := range cases {
		got, err := parsePoints(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"", "   ", "n/a", "1.2.3"} {
		_, err := parsePoints(bad)
		assert.Error(t, err, bad)
	}
}
