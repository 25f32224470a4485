// Command resale-research runs one research pass over a list of ASINs and
// writes the result records as CSV. It is the thin collaborator around the
// engine: identifier discovery and any richer UI live elsewhere.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/sedori-labs/resale-research/pkg/cache"
	"github.com/sedori-labs/resale-research/pkg/logging"
	"github.com/sedori-labs/resale-research/pkg/research"
	"github.com/sedori-labs/resale-research/pkg/spapi"
)

func main() {
	app := &cli.App{
		Name:  "resale-research",
		Usage: "estimate resale economics for marketplace product identifiers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "file with one ASIN per line (ASINs may also be passed as arguments)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "CSV output path, or - for stdout (default: timestamped file)",
			},
			&cli.StringFlag{
				Name:  "env",
				Value: ".env",
				Usage: "env file with credentials",
			},
			&cli.StringFlag{
				Name:  "redis",
				Usage: "redis address for the catalog cache (optional)",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "login user id (default: RESEARCH_USER)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "human-readable log output",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "resale-research: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	// Missing env file is fine; credentials may come from the environment.
	_ = godotenv.Load(c.String("env"))

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(c.String("log-level")),
		Pretty: c.Bool("pretty"),
		Output: os.Stderr,
	})

	session, err := login(c)
	if err != nil {
		return err
	}

	asins, err := readIdentifiers(c)
	if err != nil {
		return err
	}
	if len(asins) == 0 {
		return fmt.Errorf("no identifiers given: use --input or pass ASINs as arguments")
	}

	api, err := spapi.NewClient(spapi.Config{
		Endpoint:     os.Getenv("SPAPI_ENDPOINT"),
		AuthEndpoint: os.Getenv("SPAPI_AUTH_ENDPOINT"),
	}, spapi.Credentials{
		RefreshToken: os.Getenv("SPAPI_REFRESH_TOKEN"),
		ClientID:     os.Getenv("SPAPI_CLIENT_ID"),
		ClientSecret: os.Getenv("SPAPI_CLIENT_SECRET"),
	})
	if err != nil {
		return err
	}

	catalog, err := catalogCache(c)
	if err != nil {
		return err
	}

	engine, err := research.New(api, session, catalog, research.DefaultConfig())
	if err != nil {
		return err
	}

	records, journal := engine.Run(context.Background(), asins)

	if err := writeCSV(c, records); err != nil {
		return err
	}
	for _, entry := range journal {
		fmt.Fprintln(os.Stderr, entry)
	}
	return nil
}

// login checks the CLI credentials against the configured account.
func login(c *cli.Context) (*research.Session, error) {
	wantUser := os.Getenv("RESEARCH_USER")
	wantPass := os.Getenv("RESEARCH_PASSWORD")
	if wantUser == "" || wantPass == "" {
		return nil, fmt.Errorf("RESEARCH_USER and RESEARCH_PASSWORD must be set")
	}

	user := c.String("user")
	if user == "" {
		user = wantUser
	}
	password := os.Getenv("RESEARCH_LOGIN_PASSWORD")
	if password == "" {
		password = wantPass
	}

	return research.Login(user, password, func(u, p string) bool {
		return u == wantUser && p == wantPass
	})
}

func readIdentifiers(c *cli.Context) ([]string, error) {
	asins := append([]string(nil), c.Args().Slice()...)

	path := c.String("input")
	if path == "" {
		return asins, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identifier list: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			asins = append(asins, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read identifier list: %w", err)
	}
	return asins, nil
}

func catalogCache(c *cli.Context) (*cache.Manager, error) {
	addr := c.String("redis")
	if addr == "" {
		return nil, nil
	}

	redisClient := redis.NewClient(&redis.Options{Addr: addr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return cache.NewManager(redisClient, 0), nil
}

func writeCSV(c *cli.Context, records []research.ItemDetailRecord) error {
	path := c.String("output")
	if path == "" {
		path = fmt.Sprintf("amazon_research_%s.csv", time.Now().Format("20060102_150405"))
	}

	var out io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	// UTF-8 BOM so spreadsheet tools pick up the encoding.
	if _, err := out.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write(csvRow(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

var csvHeader = []string{
	"asin", "title", "brand", "category", "jan", "rank",
	"package_size", "shipping", "price", "seller", "tier",
	"point_rate", "fee_rate",
}

// csvRow serializes the display fields of a record. The raw rank and price
// helper fields stay internal.
func csvRow(r research.ItemDetailRecord) []string {
	return []string{
		r.ASIN,
		r.Title,
		r.Brand,
		r.Category,
		r.JAN,
		r.RankDisplay,
		r.PackageSize,
		r.ShippingDisplay,
		r.PriceDisplay,
		r.SellerLabel,
		string(r.Tier),
		r.PointRateDisplay,
		r.FeeRateDisplay,
	}
}
