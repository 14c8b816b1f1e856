package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rendis/catalogtap/internal/config"
	"github.com/rendis/catalogtap/internal/engine/contact"
	"github.com/rendis/catalogtap/internal/engine/discovery"
	"github.com/rendis/catalogtap/internal/engine/filter"
	"github.com/rendis/catalogtap/internal/model"
	"github.com/rendis/catalogtap/internal/tui/styles"
)

var browseFlags filterFlags

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Print one ranked page of the catalog",
	Long: `Fetch one page of the catalog, rank it against the saved consumer location,
wait for the producer ratings and print the result as a table.`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	browseFlags.register(browseCmd)
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := browseFlags.state(cfg.PageSize)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), log.WarnLevel)

	m, err := discover(cfg, st, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderPage(m))
	return nil
}

// discover runs the discovery model headlessly until the page and its
// ratings are loaded.
func discover(cfg *config.Config, st filter.State, logger *log.Logger) (discovery.Model, error) {
	client, err := newClient(cfg, logger)
	if err != nil {
		return discovery.Model{}, err
	}
	m := discovery.New(client, discovery.Config{
		PageSize:  st.PageSize,
		Timeout:   cfg.RequestTimeout,
		RatingRPS: cfg.RatingRPS,
		Initial:   st,
		Logger:    logger,
	})
	defer m.Close()

	m = discovery.Drive(m, m.Init())
	if err := m.Err(); err != nil {
		return m, err
	}
	return m, nil
}

// renderPage formats the ranked page of m as a lipgloss table.
func renderPage(m discovery.Model) string {
	var b strings.Builder

	pg := m.Pagination()
	b.WriteString(styles.Title.Render(fmt.Sprintf("%d products • page %d/%d", pg.Total, pg.Page, pg.TotalPages)))
	b.WriteString("\n")
	b.WriteString(describeLocation(m.Location()))
	b.WriteString("\n")

	listings := m.Listings()
	if len(listings) == 0 {
		b.WriteString("No products match the current filters.")
		return b.String()
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.Muted)).
		Headers("#", "Name", "Category", "Commune", "Region", "Price", "Distance", "Rating", "WhatsApp").
		StyleFunc(func(row, col int) lipgloss.Style {
			cell := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return cell.Bold(true).Foreground(styles.Secondary)
			case col == 0 && row >= 0 && row < len(listings):
				return cell.Inherit(styles.Tier(listings[row].PriorityTier))
			}
			return cell
		})

	for i, l := range listings {
		dist, _ := l.DistanceLabel()
		rating, _ := l.RatingLabel()
		link, _ := contact.WhatsAppLink(l.ProducerPublic.Phone, contact.DefaultCountryCode)
		t.Row(
			strconv.Itoa((pg.Page-1)*m.Filter().PageSize+i+1),
			l.Name,
			l.Category,
			l.ProducerLocation.Commune,
			l.ProducerLocation.Region,
			"$"+l.Price.String(),
			dist,
			rating,
			link,
		)
	}
	b.WriteString(t.Render())
	return b.String()
}

func describeLocation(loc *model.ConsumerLocation) string {
	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	if loc == nil {
		return muted.Render("No saved location, listings keep the catalog order")
	}
	var parts []string
	for _, p := range []string{loc.Commune, loc.Region} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return muted.Render("Ranked by saved coordinates")
	}
	return muted.Render("Ranked for " + strings.Join(parts, ", "))
}
