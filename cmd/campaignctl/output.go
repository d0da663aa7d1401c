package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fastygo/groupbuy/api/transport"
	"github.com/fastygo/groupbuy/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(14)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8f98"))

	statusColors = map[domain.Status]lipgloss.Color{
		domain.StatusActive:    lipgloss.Color("#8BC34A"),
		domain.StatusPaused:    lipgloss.Color("#E0A526"),
		domain.StatusCompleted: lipgloss.Color("#4A90E2"),
		domain.StatusExpired:   lipgloss.Color("#D9534F"),
	}
)

func statusBadge(s domain.Status) string {
	return lipgloss.NewStyle().Bold(true).Foreground(statusColors[s]).Render(string(s))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printCampaigns(w io.Writer, campaigns []domain.Campaign, now time.Time) error {
	if jsonOutput {
		return writeJSON(w, transport.NewCampaignList(campaigns, now))
	}
	if len(campaigns) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render("no campaigns"))
		return err
	}

	rows := make([][]string, 0, len(campaigns))
	for i := range campaigns {
		c := &campaigns[i]
		p := c.Progress(now)
		rows = append(rows, []string{
			c.ID,
			c.ProductName,
			statusBadge(c.Status),
			fmt.Sprintf("%d/%d", p.Current, p.Required),
			formatPrice(c.GroupPrice) + " / " + formatPrice(c.RegularPrice),
			formatTimeLeft(p.TimeLeft),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("ID", "PRODUCT", "STATUS", "PARTICIPANTS", "PRICE", "TIME LEFT").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func printCampaign(w io.Writer, c *domain.Campaign, now time.Time) error {
	if jsonOutput {
		return writeJSON(w, transport.NewCampaignResponse(c, now))
	}

	p := c.Progress(now)
	unlock := "locked"
	if p.Unlocked {
		unlock = "group price unlocked"
	}
	expires := "-"
	if c.ExpiresAt != nil {
		expires = c.ExpiresAt.Local().Format(time.RFC1123)
	}

	lines := [][2]string{
		{"ID", c.ID},
		{"Product", c.ProductName},
		{"Category", c.Category},
		{"Description", c.Description},
		{"Status", statusBadge(c.Status)},
		{"Participants", fmt.Sprintf("%d/%d (%.0f%%, %d to go)", p.Current, p.Required, p.Percent, p.Remaining)},
		{"Price", fmt.Sprintf("%s group, %s regular, save %s", formatPrice(c.GroupPrice), formatPrice(c.RegularPrice), formatPrice(p.Savings))},
		{"Threshold", unlock},
		{"Expires", expires},
		{"Time left", formatTimeLeft(p.TimeLeft)},
		{"Version", strconv.FormatInt(c.Version, 10)},
	}
	for _, line := range lines {
		if line[1] == "" {
			continue
		}
		if _, err := fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(line[0]), line[1])); err != nil {
			return err
		}
	}
	return nil
}

func formatPrice(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

func formatTimeLeft(d time.Duration) string {
	if d <= 0 {
		return "ended"
	}
	d = d.Truncate(time.Second)
	days := d / (24 * time.Hour)
	if days > 0 {
		return fmt.Sprintf("%dd %s", days, (d % (24 * time.Hour)).String())
	}
	return d.String()
}
