package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/verdantia/earthscout/internal/analysis"
	"github.com/verdantia/earthscout/internal/catalog"
	"github.com/verdantia/earthscout/internal/climate"
	"github.com/verdantia/earthscout/internal/engine"
	"github.com/verdantia/earthscout/internal/landuse"
	"github.com/verdantia/earthscout/internal/notification"
	"github.com/verdantia/earthscout/internal/properties"
	"github.com/verdantia/earthscout/internal/roi"
	"github.com/verdantia/earthscout/internal/sidra"
)

func printBanner() {
	figure1 := figure.NewFigure("Earth", "isometric1", true)
	figure2 := figure.NewFigure("Scout", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func readLine(reader *bufio.Reader, prompt string) string {
	fmt.Printf("\033[34m%s\033[0m", prompt)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func readRegion(reader *bufio.Reader) (*roi.ROI, error) {
	name := readLine(reader, "Enter the region name: ")
	path := fmt.Sprintf("%s/data/geojsons/%s.geojson", properties.RootPath(), name)
	return roi.FromFile(path)
}

func readDateRange(reader *bufio.Reader) (*catalog.TimeRange, error) {
	startInput := readLine(reader, "Enter the start date (YYYY-MM-DD, empty for none): ")
	endInput := readLine(reader, "Enter the end date (YYYY-MM-DD, empty for none): ")
	if startInput == "" && endInput == "" {
		return nil, nil
	}

	start, err := time.Parse("2006-01-02", startInput)
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", endInput)
	if err != nil {
		return nil, fmt.Errorf("invalid end date: %v", err)
	}
	return &catalog.TimeRange{Start: start, End: end}, nil
}

func initCLI(platform engine.Platform) {
	defer func() {
		if r := recover(); r != nil {
			pc, file, line, ok := runtime.Caller(3)
			var location string
			if ok {
				fn := runtime.FuncForPC(pc)
				location = fmt.Sprintf("%s:%d in %s", file, line, fn.Name())
			} else {
				location = "Unknown location"
			}

			fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
			fmt.Printf("\033[31mLocation: %s\033[0m\n", location)
			fmt.Printf("\033[31mExiting...\033[0m\n")

			stack := debug.Stack()
			errMessage := fmt.Sprintf("Earthscout CLI panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, stack)
			err := notification.SendDiscordErrorNotification(errMessage)
			if err != nil {
				fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
			}
		}
	}()
	printBanner()

	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\033[34m===================\033[0m")
		fmt.Println("\033[34m1. Catalog satellite images over a region\033[0m")
		fmt.Println("\033[34m2. Spectral index time series\033[0m")
		fmt.Println("\033[34m3. Yearly precipitation summary\033[0m")
		fmt.Println("\033[34m4. Land-use composition of a region\033[0m")
		fmt.Println("\033[34m5. Municipal crop production statistics\033[0m")
		fmt.Println("\033[34m6. Exit\033[0m")
		fmt.Println("\033[34mEnter your choice:\033[0m")

		var choice int
		_, err := fmt.Scan(&choice)
		if err != nil {
			fmt.Printf("\n\033[31mInvalid input. Please enter a number.\033[0m\n")
			fmt.Scanln()
			continue
		}
		reader.ReadString('\n')

		switch choice {
		case 1:
			fmt.Println("\033[33m\nWarning:\033[0m")
			fmt.Println("\033[33mA '.geojson' file with the region name should be present in the data/geojsons folder.\n\033[0m")

			region, err := readRegion(reader)
			if err != nil {
				fmt.Printf("\n\033[31mError loading region: %s\033[0m\n", err.Error())
				continue
			}

			collection := readLine(reader, "Enter the image collection (e.g. COPERNICUS/S2_SR_HARMONIZED): ")
			timeRange, err := readDateRange(reader)
			if err != nil {
				fmt.Printf("\n\033[31m%s\033[0m\n", err.Error())
				continue
			}

			opts := catalog.DefaultOptions()
			opts.TimeRange = timeRange
			records, err := catalog.List(ctx, platform, collection, region, opts)
			if err != nil {
				fmt.Printf("\n\033[31mError building catalog: %s\033[0m\n", err.Error())
				notification.SendDiscordErrorNotification(fmt.Sprintf("Earthscout CLI\n\nError building catalog: %s", err.Error()))
				continue
			}

			outputPath := fmt.Sprintf("%s/data/catalog/%s_%s.csv", properties.RootPath(),
				strings.ReplaceAll(collection, "/", "_"), time.Now().Format("2006-01-02"))
			if err := catalog.SaveCSV(records, outputPath); err != nil {
				fmt.Printf("\n\033[31mError saving catalog: %s\033[0m\n", err.Error())
				continue
			}

			fmt.Printf("\n\033[32mCataloged %d images.\nCatalog located at: %s\033[0m\n", len(records), outputPath)
			notification.SendDiscordSuccessNotification(fmt.Sprintf("Earthscout CLI\n\nCataloged %d images.\nCatalog located at: %s", len(records), outputPath))
		case 2:
			region, err := readRegion(reader)
			if err != nil {
				fmt.Printf("\n\033[31mError loading region: %s\033[0m\n", err.Error())
				continue
			}

			collection := readLine(reader, "Enter the image collection: ")
			index := readLine(reader, "Enter the spectral index (e.g. NDVI): ")
			timeRange, err := readDateRange(reader)
			if err != nil {
				fmt.Printf("\n\033[31m%s\033[0m\n", err.Error())
				continue
			}

			opts := catalog.DefaultOptions()
			opts.TimeRange = timeRange
			opts.ComputeClearSky = false
			records, err := catalog.List(ctx, platform, collection, region, opts)
			if err != nil {
				fmt.Printf("\n\033[31mError listing images: %s\033[0m\n", err.Error())
				continue
			}

			points := analysis.IndexTimeseries(ctx, platform, records, region.Geometry(), index, 0, false)

			outputPath := fmt.Sprintf("%s/data/timeseries/%s_%s.csv", properties.RootPath(),
				strings.ToLower(index), time.Now().Format("2006-01-02"))
			if err := analysis.SaveCSV(points, outputPath); err != nil {
				fmt.Printf("\n\033[31mError saving time series: %s\033[0m\n", err.Error())
				continue
			}

			fmt.Printf("\n\033[32mComputed %s over %d images.\nTime series located at: %s\033[0m\n", index, len(points), outputPath)
			notification.SendDiscordSuccessNotification(fmt.Sprintf("Earthscout CLI\n\nComputed %s over %d images.\nTime series located at: %s", index, len(points), outputPath))
		case 3:
			region, err := readRegion(reader)
			if err != nil {
				fmt.Printf("\n\033[31mError loading region: %s\033[0m\n", err.Error())
				continue
			}

			var firstYear, lastYear int
			fmt.Print("\033[34mEnter the first year: \033[0m")
			fmt.Scanln(&firstYear)
			fmt.Print("\033[34mEnter the last year: \033[0m")
			fmt.Scanln(&lastYear)

			series, err := climate.PrecipitationSeries(ctx, platform, region, "", "", firstYear, lastYear, false)
			if err != nil {
				fmt.Printf("\n\033[31mError aggregating precipitation: %s\033[0m\n", err.Error())
				continue
			}

			summary, err := climate.Summarize(series)
			if err != nil {
				fmt.Printf("\n\033[31mError summarizing precipitation: %s\033[0m\n", err.Error())
				continue
			}

			fmt.Println("\n\033[32mYearly precipitation (mm):\033[0m")
			for _, year := range series {
				if year.TotalMM == nil {
					fmt.Printf("\033[33m%d: unavailable\033[0m\n", year.Year)
					continue
				}
				fmt.Printf("\033[32m%d: %.1f\033[0m\n", year.Year, *year.TotalMM)
			}
			fmt.Printf("\n\033[32mOver %d years: mean %.1f, median %.1f, std %.1f, min %.1f, max %.1f\033[0m\n",
				summary.Years, summary.Mean, summary.Median, summary.StdDev, summary.Min, summary.Max)
		case 4:
			region, err := readRegion(reader)
			if err != nil {
				fmt.Printf("\n\033[31mError loading region: %s\033[0m\n", err.Error())
				continue
			}

			shares, err := landuse.Percentages(ctx, platform, region, "", "", 0, false)
			if err != nil {
				fmt.Printf("\n\033[31mError extracting land use: %s\033[0m\n", err.Error())
				notification.SendDiscordErrorNotification(fmt.Sprintf("Earthscout CLI\n\nError extracting land use: %s", err.Error()))
				continue
			}

			fmt.Println("\n\033[32mLand-use composition:\033[0m")
			for _, share := range shares {
				fmt.Printf("\033[32m%-28s %6.2f%%\033[0m\n", share.Label, share.Percent)
			}
		case 5:
			municipality := readLine(reader, "Enter the municipality code (IBGE, e.g. 3146107): ")
			crop := readLine(reader, "Enter the crop code (e.g. 40139 for arabica coffee): ")

			series, err := sidra.NewClient().Production(ctx, municipality, crop, false)
			if err != nil {
				fmt.Printf("\n\033[31mError fetching production data: %s\033[0m\n", err.Error())
				continue
			}

			outputPath := fmt.Sprintf("%s/data/sidra/%s_%s.csv", properties.RootPath(), municipality, crop)
			if err := sidra.SaveCSV(series, outputPath); err != nil {
				fmt.Printf("\n\033[31mError saving production data: %s\033[0m\n", err.Error())
				continue
			}

			fmt.Printf("\n\033[32mFetched %d years of production data.\nFile located at: %s\033[0m\n", len(series), outputPath)
		case 6:
			println("Exiting...")
			return
		default:
			println("Invalid choice. Please try again.")
		}
	}
}

func main() {
	err := godotenv.Load("../../.env")
	if err != nil {
		err := godotenv.Load("../.env")
		if err != nil {
			if err := godotenv.Load(".env"); err != nil {
				panic(err)
			}
		}
	}

	platform, err := engine.NewClientFromEnv()
	if err != nil {
		fmt.Printf("\033[31mFailed to configure platform client: %s\033[0m\n", err.Error())
		os.Exit(1)
	}

	initCLI(platform)
}
