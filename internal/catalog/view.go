package catalog

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
	"text/tabwriter"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
)

// Asset paths as served under StaticPrefix.
const (
	StaticPrefix = "/static/"
	DefaultLogo  = StaticPrefix + "aimarketplace-logo.svg"
	FinnishFlag  = StaticPrefix + "finnishflag.svg"

	Title    = "AI Marketplace Finland"
	Subtitle = "A collection of Finnish and European AI services"
)

// Card is one rendered listing.
type Card struct {
	ID          string
	Name        string
	URL         string
	Description string
	UseCase     string
	Region      string
	Logo        string
	LogoAlt     string
	Finnish     bool
}

// Page is everything needed to render the catalog.
type Page struct {
	Title    string
	Subtitle string
	Options  []Option
	Selected string
	Cards    []Card
	Flag     string
}

// View prepares, filters and orders listings for display. Options are
// derived from the whole prepared feed so the selector never shrinks.
func View(listings []*domain.Listing, selected string) Page {
	prepared := Prepare(listings)
	shown := SortFinlandFirst(Filter(prepared, selected))

	cards := make([]Card, 0, len(shown))
	for _, l := range shown {
		cards = append(cards, cardOf(l))
	}

	return Page{
		Title:    Title,
		Subtitle: Subtitle,
		Options:  Options(prepared),
		Selected: strings.TrimSpace(selected),
		Cards:    cards,
		Flag:     FinnishFlag,
	}
}

func cardOf(l *domain.Listing) Card {
	c := Card{
		ID:          l.ID,
		Name:        l.Name,
		URL:         l.URL,
		Description: l.Description,
		UseCase:     l.UseCase,
		Region:      string(l.Region),
		Logo:        DefaultLogo,
		LogoAlt:     "AI Marketplace Logo",
		Finnish:     l.IsFinnish(),
	}
	if logo := strings.TrimSpace(l.ImageKey); logo != "" {
		c.Logo = logo
		c.LogoAlt = l.Name + " Logo"
	}
	return c
}

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static holds the page assets, rooted so that StaticPrefix+name opens name.
var Static = func() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}()

var pageTemplate = template.Must(template.New("page.html").Funcs(template.FuncMap{
	"selected": func(opt Option, current string) bool {
		return domain.FoldTag(opt.Value) == domain.FoldTag(current)
	},
}).ParseFS(templateFS, "templates/page.html"))

// RenderHTML writes the catalog page.
func RenderHTML(w io.Writer, p Page) error {
	return pageTemplate.Execute(w, p)
}

// RenderText writes the catalog as an aligned table.
func RenderText(w io.Writer, p Page) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "NAME\tREGION\tUSE CASE\tURL"); err != nil {
		return err
	}
	for _, c := range p.Cards {
		region := c.Region
		if c.Finnish {
			region += " *"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, region, c.UseCase, c.URL); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(p.Cards) == 0 {
		_, err := fmt.Fprintln(w, "no listings")
		return err
	}
	return nil
}
