// Package mediafilter classifies catalog items by length and title keywords
// so that shorts, reactions and full-album uploads never reach the swipe deck.
package mediafilter

import (
	"math"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// Verdict is the outcome of Classify.
type Verdict int

const (
	Accept Verdict = iota
	Reject
)

func (v Verdict) String() string {
	if v == Accept {
		return "accept"
	}
	return "reject"
}

// Default bounds, in seconds.
const (
	DefaultMinSeconds = 60
	DefaultMaxSeconds = 900
)

// DefaultKeywords is the disallowed title keyword set.
var DefaultKeywords = []string{"short", "shorts", "commentary", "reaction", "live", "interview", "full album"}

// Filter holds the length bounds and the disallowed keyword list.
// An item is rejected if its length is <= MinSeconds or > MaxSeconds.
type Filter struct {
	MinSeconds int
	MaxSeconds int
	keywords   []string
}

// New creates a Filter. A nil keyword list selects DefaultKeywords.
func New(minSeconds, maxSeconds int, keywords []string) *Filter {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Filter{
		MinSeconds: minSeconds,
		MaxSeconds: maxSeconds,
		keywords:   lowered,
	}
}

// Default returns a Filter with the default bounds and keywords.
func Default() *Filter {
	return New(DefaultMinSeconds, DefaultMaxSeconds, nil)
}

// Keywords returns a copy of the lower-cased disallowed keywords.
func (f *Filter) Keywords() []string {
	return append([]string(nil), f.keywords...)
}

// Classify decides whether an item with the given ISO-8601 duration and title is acceptable.
// An unparseable duration counts as zero seconds.
func (f *Filter) Classify(isoDuration, title string) Verdict {
	return f.ClassifySeconds(Seconds(isoDuration), title)
}

// ClassifySeconds is Classify for catalogs that report length as a number.
func (f *Filter) ClassifySeconds(seconds int, title string) Verdict {
	if seconds <= f.MinSeconds || seconds > f.MaxSeconds {
		return Reject
	}
	if f.HasKeyword(title) {
		return Reject
	}
	return Accept
}

// HasKeyword reports whether the lower-cased title contains any disallowed keyword.
func (f *Filter) HasKeyword(title string) bool {
	lower := strings.ToLower(title)
	for _, k := range f.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Seconds converts an ISO-8601 duration such as "PT3M20S" to whole seconds.
// It returns 0 for empty, malformed or negative input and never panics.
func Seconds(isoDuration string) (seconds int) {
	defer func() {
		if recover() != nil {
			seconds = 0
		}
	}()

	isoDuration = strings.TrimSpace(isoDuration)
	if isoDuration == "" {
		return 0
	}

	d, err := duration.Parse(isoDuration)
	if err != nil || d.Negative {
		return 0
	}

	// Durations past time.Duration's range would wrap on conversion.
	if approxSeconds(d) > maxSeconds {
		return 0
	}
	if seconds = int(d.ToTimeDuration().Seconds()); seconds < 0 {
		return 0
	}
	return seconds
}

// maxSeconds is the longest duration time.Duration can hold, in seconds.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

func approxSeconds(d *duration.Duration) float64 {
	const day = 24 * 3600
	return d.Years*366*day + d.Months*31*day + d.Weeks*7*day + d.Days*day +
		d.Hours*3600 + d.Minutes*60 + d.Seconds
}
