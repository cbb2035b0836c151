package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/teranos/vacancy/am"
	"github.com/teranos/vacancy/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(cfg *am.Config, dbPath string, port int) {
	versionInfo := version.Get()

	pterm.DefaultHeader.WithFullWidth().Println("vacancy job board")

	tiers := make([]string, 0, len(cfg.Listing.Tiers))
	for _, t := range cfg.Listing.Tiers {
		tiers = append(tiers, fmt.Sprintf("%dd/%s", t.Days, formatCents(t.PriceCents, cfg.Payment.Currency)))
	}

	pterm.DefaultTable.WithData(pterm.TableData{
		{"Version", fmt.Sprintf("%s (commit %s)", versionInfo.Version, versionInfo.Short())},
		{"Built", versionInfo.BuildTime},
		{"Listening", fmt.Sprintf(":%d", port)},
		{"Public URL", cfg.Server.PublicURL},
		{"Database", dbPath},
		{"Payments", cfg.Payment.Provider},
		{"Tiers", strings.Join(tiers, ", ")},
		{"Admission", admissionSummary(cfg.Admission)},
	}).Render()

	if cfg.Payment.Provider == "fake" {
		pterm.Warning.Println("Fake payment gateway: checkouts are never charged")
	}
	pterm.Info.Println("Press Ctrl+C to stop")
}

func admissionSummary(cfg am.AdmissionConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("%s, %d units/min, bots blocked: %t", cfg.Backend, cfg.UnitsPerMinute, cfg.BlockBots)
}

// formatCents renders an amount in minor units, e.g. 5900 usd -> "$ 59.00"
func formatCents(cents int64, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(code))
	}
	return message.NewPrinter(language.English).Sprint(currency.Symbol(unit.Amount(float64(cents) / 100)))
}
