package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/loanmon/config"
)

// ConfigFile is where the wizard writes its result.
const ConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers are the raw wizard inputs.
type answers struct {
	source          string
	quotes          string
	priceCacheTTL   string
	sessionCacheTTL string
	resolveTimeout  string
	schedule        string
	webAddr         string
	threshold       string
}

func defaultAnswers() answers {
	def := config.Default()
	return answers{
		source:          def.MarketSource,
		quotes:          strings.Join(def.QuoteCurrencies, ","),
		priceCacheTTL:   def.PriceCacheTTL.String(),
		sessionCacheTTL: def.SessionCacheTTL.String(),
		resolveTimeout:  def.ResolveTimeout.String(),
		schedule:        def.Schedule,
		webAddr:         ":8080",
		threshold:       def.DiscrepancyThreshold.String(),
	}
}

func step(title string) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("LOANMON CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(title))
}

// RunTUI launches the terminal configuration wizard and writes ConfigFile.
func RunTUI() error {
	a := defaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("LOANMON CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Watch your OKX flexible loan before the margin call does.\n"))

	// credentials stay in the environment
	if !credentialsFromEnv().Complete() {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render(
			"OKX_API_KEY, OKX_SECRET_KEY and OKX_PASSPHRASE are not all set; add them to .env before running."))
	}

	step("STEP 1: PRICE SOURCE")
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should collateral prices come from?").
				Options(
					huh.NewOption("OKX", config.SourceOKX),
					huh.NewOption("Binance", config.SourceBinance),
					huh.NewOption("Bybit", config.SourceBybit),
					huh.NewOption("Hyperliquid", config.SourceHyperliquid),
				).
				Value(&a.source),
			huh.NewInput().
				Title("Quote currencies").
				Description("Priority order, comma separated (e.g. USDT,USDC,USD)").
				Value(&a.quotes).
				Validate(func(s string) error {
					if strings.TrimSpace(strings.ReplaceAll(s, ",", "")) == "" {
						return fmt.Errorf("at least one quote currency is required")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 2: CACHING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Price cache TTL").
				Description("How long stored prices stay valid (e.g. 5m)").
				Value(&a.priceCacheTTL).
				Validate(validateDuration),
			huh.NewInput().
				Title("Session cache TTL").
				Description("In-process price reuse window (e.g. 30s)").
				Value(&a.sessionCacheTTL).
				Validate(validateDuration),
			huh.NewInput().
				Title("Resolve timeout").
				Description("Deadline for one price resolution pass").
				Value(&a.resolveTimeout).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 3: SCHEDULE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Check schedule").
				Description("Cron expression for --daemon (e.g. @every 5m or */10 * * * *)").
				Value(&a.schedule).
				Validate(validateSchedule),
			huh.NewInput().
				Title("Web address").
				Description("Listen address for stream and metrics, empty disables").
				Value(&a.webAddr),
			huh.NewInput().
				Title("Discrepancy warning %").
				Description("Warn when computed collateral differs from OKX by more than this").
				Value(&a.threshold).
				Validate(validatePercent),
		),
	).Run()
	if err != nil {
		return err
	}

	cfg, err := a.toConfig()
	if err != nil {
		return err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Source: %s\nQuotes: %s\nPrice cache TTL: %s\nSession TTL: %s\nSchedule: %s\nWeb: %s\n",
		cfg.MarketSource, strings.Join(cfg.QuoteCurrencies, ","), cfg.PriceCacheTTL,
		cfg.SessionCacheTTL, cfg.Schedule, cfg.WebAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := writeConfig(ConfigFile, cfg); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\nConfiguration saved to %s\nRun: loanmon --config %s", ConfigFile, ConfigFile)))
	return nil
}

func (a answers) toConfig() (config.Config, error) {
	cfg := config.Default()
	cfg.MarketSource = a.source
	cfg.WebAddr = strings.TrimSpace(a.webAddr)
	cfg.Schedule = strings.TrimSpace(a.schedule)

	var quotes []string
	for _, q := range strings.Split(a.quotes, ",") {
		if q = strings.ToUpper(strings.TrimSpace(q)); q != "" {
			quotes = append(quotes, q)
		}
	}
	if len(quotes) == 0 {
		return config.Config{}, fmt.Errorf("at least one quote currency is required")
	}
	cfg.QuoteCurrencies = quotes

	durations := []struct {
		raw string
		dst *time.Duration
	}{
		{a.priceCacheTTL, &cfg.PriceCacheTTL},
		{a.sessionCacheTTL, &cfg.SessionCacheTTL},
		{a.resolveTimeout, &cfg.ResolveTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.raw)
		if err != nil || v <= 0 {
			return config.Config{}, fmt.Errorf("invalid duration %q", d.raw)
		}
		*d.dst = v
	}

	if err := validateSchedule(cfg.Schedule); err != nil {
		return config.Config{}, err
	}

	th, err := decimal.NewFromString(a.threshold)
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid discrepancy threshold %q", a.threshold)
	}
	cfg.DiscrepancyThreshold = th

	return cfg, nil
}

func writeConfig(path string, cfg config.Config) error {
	data, err := yaml.Marshal(cfg.ToTmp())
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func credentialsFromEnv() config.Credentials {
	return config.Credentials{
		APIKey:     os.Getenv("OKX_API_KEY"),
		SecretKey:  os.Getenv("OKX_SECRET_KEY"),
		Passphrase: os.Getenv("OKX_PASSPHRASE"),
		Simulated:  os.Getenv("OKX_FLAG") == "1",
	}
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateSchedule(s string) error {
	if _, err := cron.ParseStandard(s); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	return nil
}

func validatePercent(s string) error {
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d <= 0 || d > 100 {
		return fmt.Errorf("must be between 0 and 100")
	}
	return nil
}
