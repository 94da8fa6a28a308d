package locale

import (
	"embed"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/markusylisiurunen/rolodex/internal/contact"
	"gopkg.in/yaml.v3"
)

//go:embed *.yaml
var catalogs embed.FS

const Default = "es"

// Catalog holds every user and model facing text for one language.
type Catalog struct {
	Lang     string                   `yaml:"lang"`
	Weekdays []string                 `yaml:"weekdays"`
	Months   []string                 `yaml:"months"`
	Fields   map[contact.Field]string `yaml:"fields"`
	Messages map[string]string        `yaml:"messages"`
	Policy   string                   `yaml:"prompt"`
}

// Languages lists the embedded catalogs.
func Languages() []string {
	entries, _ := catalogs.ReadDir(".")
	langs := make([]string, 0, len(entries))
	for _, e := range entries {
		langs = append(langs, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	slices.Sort(langs)
	return langs
}

func Load(lang string) (*Catalog, error) {
	if lang == "" {
		lang = Default
	}
	data, err := catalogs.ReadFile(lang + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unsupported language %q (available: %s)", lang, strings.Join(Languages(), ", "))
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("error parsing %s catalog: %w", lang, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s catalog: %w", lang, err)
	}
	return &c, nil
}

// MustLoad is Load for languages known to be embedded.
func MustLoad(lang string) *Catalog {
	c, err := Load(lang)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) validate() error {
	if len(c.Weekdays) != 7 {
		return fmt.Errorf("expected 7 weekdays, got %d", len(c.Weekdays))
	}
	if len(c.Months) != 12 {
		return fmt.Errorf("expected 12 months, got %d", len(c.Months))
	}
	if strings.TrimSpace(c.Policy) == "" {
		return fmt.Errorf("missing prompt")
	}
	if c.Messages["placeholder"] == "" {
		return fmt.Errorf("missing placeholder message")
	}
	return nil
}

// Text returns the message for key, or the key itself when the catalog has no such entry.
func (c *Catalog) Text(key string) string {
	if msg, ok := c.Messages[key]; ok {
		return msg
	}
	return key
}

func (c *Catalog) Sprintf(key string, args ...any) string {
	return fmt.Sprintf(c.Text(key), args...)
}

// Placeholder is the text shown in place of an empty phone or email.
func (c *Catalog) Placeholder() string {
	return c.Messages["placeholder"]
}

func (c *Catalog) Weekday(d time.Weekday) string {
	return c.Weekdays[d]
}

func (c *Catalog) Month(m time.Month) string {
	return c.Months[m-1]
}

// Prompt renders the agent policy prompt for the given schema: one line per field with its
// header label and description.
func (c *Catalog) Prompt(s contact.Schema) string {
	var b strings.Builder
	for i, f := range contact.Fields {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", s.Header(f), c.Fields[f])
	}
	return fmt.Sprintf(c.Policy, b.String(), c.Placeholder())
}
