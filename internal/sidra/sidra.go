package sidra

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/verdantia/earthscout/internal/notification"
	"github.com/verdantia/earthscout/internal/properties"
	"github.com/verdantia/earthscout/internal/utils"
)

// Table 5457: planted/harvested area, production and yield of temporary
// and permanent crops, per municipality and year.
const productionTable = "5457"

var variables = []struct {
	code string
	name string
}{
	{"8331", "planted area"},
	{"216", "harvested area"},
	{"214", "quantity"},
	{"112", "yield"},
}

// Crop codes whose production is only reported as processed grain from
// 2002 onward.
var coffeeCrops = map[string]bool{"40139": true, "40140": true}

// CropYear is one year of municipal production figures. SIDRA encodes
// "not informed" and "not applicable" as dash/dot cells; those stay
// absent here.
type CropYear struct {
	Year            int      `csv:"year"`
	PlantedAreaHa   *float64 `csv:"planted_area_ha"`
	HarvestedAreaHa *float64 `csv:"harvested_area_ha"`
	QuantityKg      *float64 `csv:"quantity_kg"`
	YieldKgHa       *float64 `csv:"yield_kg_ha"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: properties.SidraBaseUrl(),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				// The upstream's certificate chain is broken more often
				// than not; verification stays off, as the service only
				// serves public statistics.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// Production fetches table 5457 for one municipality and crop, one
// request per variable, merged into a per-year series.
func (c *Client) Production(ctx context.Context, municipality, crop string, debug bool) ([]CropYear, error) {
	if municipality == "" || crop == "" {
		return nil, errors.New("municipality and crop codes are required")
	}

	byYear := make(map[int]*CropYear)

	for _, variable := range variables {
		url := fmt.Sprintf("%s/values/t/%s/n6/%s/v/%s/p/all/c782/%s?formato=json",
			c.baseURL, productionTable, municipality, variable.code, crop)
		if debug {
			fmt.Printf("[DEBUG] fetching %s from %s\n", variable.name, url)
		}

		rows, err := c.fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", variable.name, err)
		}
		if len(rows) < 2 {
			return nil, fmt.Errorf("sidra returned no data rows for %s", variable.name)
		}

		// The first row is the header.
		for _, row := range rows[1:] {
			year, err := strconv.Atoi(row["D3C"])
			if err != nil {
				continue
			}
			entry, ok := byYear[year]
			if !ok {
				entry = &CropYear{Year: year}
				byYear[year] = entry
			}

			value := parseValue(row["V"])
			switch variable.code {
			case "8331":
				entry.PlantedAreaHa = value
			case "216":
				entry.HarvestedAreaHa = value
			case "214":
				entry.QuantityKg = value
			case "112":
				entry.YieldKgHa = value
			}
		}
	}

	series := make([]CropYear, 0, len(byYear))
	for _, year := range utils.SortedKeys(byYear) {
		series = append(series, *byYear[year])
	}

	warn(series, crop)
	return series, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]map[string]string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("sidra request failed: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(response.Body)
		return nil, fmt.Errorf("sidra returned status %d: %s", response.StatusCode, string(detail))
	}

	var rows []map[string]string
	if err := json.NewDecoder(response.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode sidra response: %v", err)
	}
	return rows, nil
}

// parseValue decodes one table cell. SIDRA uses "-", "..", "..." and "X"
// for the flavors of missing; none of them is a zero.
func parseValue(cell string) *float64 {
	value, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	return &value
}

func warn(series []CropYear, crop string) {
	if len(series) == 0 {
		return
	}

	allPlantedAbsent := true
	for _, year := range series {
		if year.PlantedAreaHa != nil {
			allPlantedAbsent = false
			break
		}
	}
	if allPlantedAbsent {
		report("planted area is only reported from 1988 onward")
	}

	if coffeeCrops[crop] && series[0].Year < 2002 {
		report("coffee production is only reported as processed grain from 2002 onward")
	}
}

func report(message string) {
	fmt.Printf("[WARN] %s\n", message)
	notification.SendDiscordWarnNotification("Crop production statistics\n\n" + message)
}

// SaveCSV writes the series to path, creating parent directories.
func SaveCSV(series []CropYear, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %v", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create production file: %v", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&series, file); err != nil {
		return fmt.Errorf("failed to write production csv: %v", err)
	}
	return nil
}
