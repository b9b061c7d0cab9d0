package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"captioner/internal/paths"
)

// Category names the classification variant.
type Category string

const (
	CategoryTV      Category = "tv"
	CategoryMovie   Category = "movie"
	CategoryUnknown Category = "unknown"
)

// Classification is one of TVEpisode, Movie, or Unknown.
type Classification interface {
	Category() Category
	// Name is the raw folder name used for per-show artifact names.
	Name() string
	// Label is a short human-readable description for logs.
	Label() string
	classification()
}

// TVEpisode is a file under a season or specials folder.
type TVEpisode struct {
	Show     string
	Season   int
	Episode  int
	Numbered bool
	Title    string
}

// Movie is a file outside any season folder.
type Movie struct {
	Title string
	Year  int
}

// Unknown is a file whose location yields no usable name.
type Unknown struct{}

func (TVEpisode) Category() Category { return CategoryTV }
func (e TVEpisode) Name() string { return e.Show }
func (e TVEpisode) Label() string {
	if !e.Numbered {
		return e.Show
	}
	return fmt.Sprintf("%s S%02dE%02d", e.Show, e.Season, e.Episode)
}
func (TVEpisode) classification() {}

func (Movie) Category() Category { return CategoryMovie }
func (m Movie) Name() string { return m.Title }
func (m Movie) Label() string { return m.Title }
func (Movie) classification() {}

func (Unknown) Category() Category { return CategoryUnknown }
func (Unknown) Name() string { return "" }
func (Unknown) Label() string { return "unknown" }
func (Unknown) classification() {}

var (
	episodePattern   = regexp.MustCompile(`[Ss](\d{1,2})[Ee](\d{1,2})`)
	titlePattern     = regexp.MustCompile(`[Ss]\d{1,2}[Ee]\d{1,2}\s*-\s*(.+?)(?:\s+\[|\s+\(|\s+WEBDL|$)`)
	qualitySuffix    = regexp.MustCompile(`(?i)\s+(WEBDL|BluRay|WEB-DL|HDTV|1080p|720p|480p).*$`)
	movieYearPattern = regexp.MustCompile(`\((\d{4})\)`)
)

// Classify derives a classification from the directory layout and file name.
func Classify(path string) Classification {
	name := paths.ShowOrMovieName(path)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Unknown{}
	}
	if paths.InSeasonLayout(path) {
		return classifyEpisode(name, paths.Stem(path))
	}
	movie := Movie{Title: name}
	if match := movieYearPattern.FindStringSubmatch(name); match != nil {
		movie.Year, _ = strconv.Atoi(match[1])
	}
	return movie
}

func classifyEpisode(show, stem string) TVEpisode {
	episode := TVEpisode{Show: show}
	match := episodePattern.FindStringSubmatch(stem)
	if match == nil {
		return episode
	}
	episode.Season, _ = strconv.Atoi(match[1])
	episode.Episode, _ = strconv.Atoi(match[2])
	episode.Numbered = true
	if title := titlePattern.FindStringSubmatch(stem); title != nil {
		episode.Title = strings.TrimSpace(qualitySuffix.ReplaceAllString(strings.TrimSpace(title[1]), ""))
	}
	return episode
}

// DisplayName cleans a folder name for prompts and notifications: dots and
// underscores become spaces, and all-lowercase names are title-cased.
func DisplayName(c Classification) string {
	raw := c.Name()
	if raw == "" {
		return "Unknown"
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '.' || r == '_' {
			return ' '
		}
		return r
	}, raw)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == strings.ToLower(cleaned) && strings.IndexFunc(cleaned, unicode.IsLetter) >= 0 {
		cleaned = cases.Title(language.Und).String(cleaned)
	}
	return cleaned
}
