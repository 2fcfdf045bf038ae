package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stocktide/stocktide/internal/models"
)

// FakeSearcher is a deterministic PlatformSearcher with per-community canned
// results and configurable failures, for tests and offline runs.
type FakeSearcher struct {
	mu      sync.RWMutex
	results map[string]*SearchResult // keyed by community|ticker
	failAll bool
	failFor map[string]bool // keyed by community
}

// NewFakeSearcher creates an empty fake searcher.
func NewFakeSearcher() *FakeSearcher {
	return &FakeSearcher{
		results: make(map[string]*SearchResult),
		failFor: make(map[string]bool),
	}
}

// SetResult registers the canned result for a community/ticker pair.
func (f *FakeSearcher) SetResult(community, ticker string, res SearchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res.Community = community
	f.results[searchKey(community, ticker)] = &res
}

// SetFailure configures all searches to fail.
func (f *FakeSearcher) SetFailure(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = fail
}

// SetCommunityFailure configures searches against one community to fail.
func (f *FakeSearcher) SetCommunityFailure(community string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[community] = fail
}

func (f *FakeSearcher) SearchCommunity(ctx context.Context, community, ticker string, _ time.Duration) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.failAll || f.failFor[community] {
		return nil, fmt.Errorf("fake searcher configured to fail for %s", community)
	}
	if res, ok := f.results[searchKey(community, ticker)]; ok {
		cp := *res
		return &cp, nil
	}
	return &SearchResult{Community: community}, nil
}

func searchKey(community, ticker string) string {
	return community + "|" + strings.ToUpper(ticker)
}

// FakeFetcher is a deterministic PlatformFetcher serving canned posts per
// community.
type FakeFetcher struct {
	mu         sync.RWMutex
	posts      map[string][]models.Post
	shouldFail bool
}

// NewFakeFetcher creates an empty fake fetcher.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{posts: make(map[string][]models.Post)}
}

// SetPosts registers the canned posts for a community.
func (f *FakeFetcher) SetPosts(community string, posts []models.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[community] = posts
}

// SetFailure configures fetches to fail.
func (f *FakeFetcher) SetFailure(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shouldFail = fail
}

func (f *FakeFetcher) FetchPosts(ctx context.Context, community string, limit int) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.shouldFail {
		return nil, fmt.Errorf("fake fetcher configured to fail")
	}
	posts := f.posts[community]
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	out := make([]models.Post, len(posts))
	copy(out, posts)
	return out, nil
}

// FakeNews is a NewsProvider returning a fixed correlation.
type FakeNews struct {
	mu         sync.RWMutex
	result     NewsCorrelation
	shouldFail bool
}

// NewFakeNews creates a fake news provider with a mixed default.
func NewFakeNews() *FakeNews {
	return &FakeNews{result: NewsCorrelation{Class: NewsMixed, Strength: 0.5, ArticleCount: 3}}
}

// SetResult sets the canned correlation.
func (f *FakeNews) SetResult(res NewsCorrelation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = res
}

// SetFailure configures correlation calls to fail.
func (f *FakeNews) SetFailure(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shouldFail = fail
}

func (f *FakeNews) Correlation(ctx context.Context, _ string, _ float64, _ time.Duration) (*NewsCorrelation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.shouldFail {
		return nil, fmt.Errorf("fake news provider configured to fail")
	}
	cp := f.result
	return &cp, nil
}

// FakeEcon is an EconProvider returning a fixed outlook.
type FakeEcon struct {
	mu         sync.RWMutex
	outlook    EconOutlook
	shouldFail bool
}

// NewFakeEcon creates a fake macro provider with a neutral default.
func NewFakeEcon() *FakeEcon {
	return &FakeEcon{outlook: EconOutlook{Assessment: EconNeutral}}
}

// SetOutlook sets the canned outlook.
func (f *FakeEcon) SetOutlook(o EconOutlook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outlook = o
}

// SetFailure configures outlook calls to fail.
func (f *FakeEcon) SetFailure(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shouldFail = fail
}

func (f *FakeEcon) Outlook(ctx context.Context, _ string, _ float64) (*EconOutlook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.shouldFail {
		return nil, fmt.Errorf("fake econ provider configured to fail")
	}
	cp := f.outlook
	return &cp, nil
}

// FakePrice is a PriceProvider serving canned series per ticker.
type FakePrice struct {
	mu         sync.RWMutex
	series     map[string][]PricePoint
	shouldFail bool
}

// NewFakePrice creates an empty fake price provider.
func NewFakePrice() *FakePrice {
	return &FakePrice{series: make(map[string][]PricePoint)}
}

// SetSeries registers the canned series for a ticker.
func (f *FakePrice) SetSeries(ticker string, series []PricePoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[strings.ToUpper(ticker)] = series
}

// SetFailure configures series calls to fail.
func (f *FakePrice) SetFailure(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shouldFail = fail
}

func (f *FakePrice) HistoricalSeries(ctx context.Context, ticker string) ([]PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.shouldFail {
		return nil, fmt.Errorf("fake price provider configured to fail")
	}
	series := f.series[strings.ToUpper(ticker)]
	out := make([]PricePoint, len(series))
	copy(out, series)
	return out, nil
}

// LexiconSentiment is a deterministic SentimentAnalyzer built on a small
// bull/bear lexicon. It stands in for the paid AI-sentiment provider in tests
// and offline runs.
type LexiconSentiment struct {
	mu         sync.RWMutex
	shouldFail bool
}

// NewLexiconSentiment creates the lexicon analyzer.
func NewLexiconSentiment() *LexiconSentiment {
	return &LexiconSentiment{}
}

// SetFailure configures analyze calls to fail.
func (l *LexiconSentiment) SetFailure(fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shouldFail = fail
}

var bullishWords = map[string]bool{
	"buy": true, "bullish": true, "calls": true, "moon": true, "rally": true,
	"breakout": true, "undervalued": true, "long": true, "upside": true,
}

var bearishWords = map[string]bool{
	"sell": true, "bearish": true, "puts": true, "crash": true, "dump": true,
	"overvalued": true, "short": true, "downside": true, "bagholder": true,
}

func (l *LexiconSentiment) Analyze(ctx context.Context, text string) (*SentimentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.shouldFail {
		return nil, fmt.Errorf("fake sentiment analyzer configured to fail")
	}

	var bulls, bears int
	tokens := strings.Fields(strings.ToLower(text))
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,!?$#()\"'")
		if bullishWords[tok] {
			bulls++
		}
		if bearishWords[tok] {
			bears++
		}
	}

	hits := bulls + bears
	if hits == 0 {
		return &SentimentResult{Score: 0, Confidence: 0.2}, nil
	}

	score := models.ClampSentiment(float64(bulls-bears) / float64(hits) * 100)
	confidence := models.Clamp(float64(hits)/10, 0.3, 0.9)
	return &SentimentResult{Score: score, Confidence: confidence}, nil
}
