package probes

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/baptistax/tunnelprobe/internal/logging"
)

// FingerprintProbe collects the host-environment facts a remote observer
// could fingerprint: locale list, platform, timezone name. Inconsistency
// between the configured locales, or a bare "UTC" timezone, is a weak
// signal of a sanitized or mismatched environment.
type FingerprintProbe struct {
	Log *logging.Recorder
}

func (p *FingerprintProbe) Run() FingerprintResult {
	res := FingerprintResult{
		Languages: hostLanguages(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Timezone:  systemZone(),
	}

	note := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		res.Details = append(res.Details, line)
		p.Log.Logf("%s", line)
	}

	note("platform %s", res.Platform)
	note("languages %s", strings.Join(res.Languages, ", "))
	note("timezone %s", res.Timezone)

	if len(res.Languages) > 1 {
		first := primarySubtag(res.Languages[0])
		for _, lang := range res.Languages[1:] {
			if primarySubtag(lang) != first {
				res.Inconsistent = true
				note("language %q disagrees with primary %q", lang, res.Languages[0])
			}
		}
	}

	// An exact "UTC" zone usually means the real zone was scrubbed.
	if res.Timezone == "UTC" {
		res.Inconsistent = true
		note("timezone is generic UTC")
	}

	return res
}

func hostLanguages() []string {
	var out []string
	seen := map[string]bool{}

	add := func(lang string) {
		lang = strings.TrimSpace(lang)
		if lang == "" || seen[lang] {
			return
		}
		seen[lang] = true
		out = append(out, lang)
	}

	for _, lang := range strings.Split(os.Getenv("LANGUAGE"), ":") {
		add(lang)
	}
	add(os.Getenv("LC_ALL"))
	add(os.Getenv("LANG"))
	return out
}

func primarySubtag(lang string) string {
	lang = strings.ToLower(lang)
	if idx := strings.IndexAny(lang, "_-."); idx > 0 {
		lang = lang[:idx]
	}
	return lang
}
