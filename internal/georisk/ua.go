package georisk

import (
	"regexp"
	"strings"

	"github.com/mssola/useragent"
)

// MinUserAgentLength below which a User-Agent is treated as suspicious.
const MinUserAgentLength = 10

// Word-boundary matches so "monitor" does not trip the Tor check and
// "curly" does not trip the curl check.
var (
	anonymizerPattern = regexp.MustCompile(`(?i)\b(tor|vpn|proxy|anonym)`)
	automationPattern = regexp.MustCompile(`(?i)\b(bot|crawl|spider|scrape|curl|wget|python-requests|headless|phantomjs|selenium)`)
)

// UASignals is the outcome of User-Agent heuristics. Signals are
// independent; the scorer weighs each one separately.
type UASignals struct {
	Missing    bool
	Anonymizer bool
	Automation bool
	Browser    string
}

// AnalyzeUserAgent classifies the raw User-Agent header. Heuristics only:
// a spoofed header passes, which is why the UA contributes to the score
// instead of deciding on its own.
func AnalyzeUserAgent(raw string) UASignals {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < MinUserAgentLength {
		return UASignals{Missing: true}
	}

	signals := UASignals{
		Anonymizer: anonymizerPattern.MatchString(trimmed),
		Automation: automationPattern.MatchString(trimmed),
	}

	ua := useragent.New(trimmed)
	if ua.Bot() {
		signals.Automation = true
	}
	name, _ := ua.Browser()
	signals.Browser = name
	return signals
}
