package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"rental-sync/models"
	"rental-sync/utils"
)

type InsightService struct {
	origin string
	logger *utils.Logger
}

// NewInsightService creates an InsightService. origin prefixes site-relative
// property URLs in the recommendation.
func NewInsightService(origin string, logger *utils.Logger) *InsightService {
	return &InsightService{origin: origin, logger: logger}
}

// Savings is how far a listing's price per bed sits below the model's
// prediction. Positive means underpriced.
func Savings(l *models.Listing) float64 {
	if l.PredictedPricePerBed == nil || l.PricePerBed == nil {
		return 0
	}
	return *l.PredictedPricePerBed - *l.PricePerBed
}

// Generate summarises listings and ranks those within budget by savings,
// largest first.
func (s *InsightService) Generate(listings []*models.Listing, budget float64) *models.InsightReport {
	report := &models.InsightReport{
		Budget:      budget,
		ByFrequency: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var priced []*models.Listing
	var candidates []*models.Listing

	for _, l := range listings {
		if l.PriceFrequency != "" {
			report.ByFrequency[l.PriceFrequency]++
		}
		if l.PricePerBed == nil {
			continue
		}
		priced = append(priced, l)
		if l.PredictedPricePerBed == nil {
			continue
		}
		report.WithPrediction++
		if *l.PricePerBed <= budget {
			candidates = append(candidates, l)
		}
	}

	// Per-bed stats over listings with a defined price per bed
	if len(priced) > 0 {
		report.MinPerBed = *priced[0].PricePerBed
		report.MaxPerBed = *priced[0].PricePerBed
		var total float64
		for _, l := range priced {
			p := *l.PricePerBed
			total += p
			if p < report.MinPerBed {
				report.MinPerBed = p
			}
			if p > report.MaxPerBed {
				report.MaxPerBed = p
			}
		}
		report.AveragePerBed = round2(total / float64(len(priced)))
		report.MinPerBed = round2(report.MinPerBed)
		report.MaxPerBed = round2(report.MaxPerBed)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return Savings(candidates[i]) > Savings(candidates[j])
	})
	report.Underpriced = candidates
	report.WithinBudget = len(candidates)

	if len(candidates) > 0 {
		report.Recommendation = candidates[0]
		report.RecommendedURL = candidates[0].FullURL(s.origin)
	}

	s.logger.Info("[insights] %d of %d listings within budget £%.0f", report.WithinBudget, report.TotalListings, budget)
	return report
}

// Print writes the report to stdout.
func (s *InsightService) Print(r *models.InsightReport) {
	s.Fprint(os.Stdout, r)
}

// Fprint writes the report to w.
func (s *InsightService) Fprint(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 RENTAL PRICE INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Listings modelled       : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  With a price prediction : \033[1m%d\033[0m\n", r.WithPrediction)
	fmt.Fprintf(w, "  Within £%-6.0f budget   : \033[1m%d\033[0m\n", r.Budget, r.WithinBudget)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Rent per Bedroom\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePerBed > 0 {
		fmt.Fprintf(w, "  Average : \033[1;32m£%.2f\033[0m\n", r.AveragePerBed)
		fmt.Fprintf(w, "  Minimum : \033[1;32m£%.2f\033[0m\n", r.MinPerBed)
		fmt.Fprintf(w, "  Maximum : \033[1;32m£%.2f\033[0m\n", r.MaxPerBed)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	// ── MOST UNDERPRICED ─────────────────────────────────────────────────
	fmt.Fprintf(w, "\033[1;33m  Top 5 Underpriced Flats\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Underpriced) == 0 {
		fmt.Fprintf(w, "  No flats found within your budget.\n")
	} else {
		top := r.Underpriced
		if len(top) > 5 {
			top = top[:5]
		}
		for i, l := range top {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-34s £%7.2f \033[1;32m(+£%.2f)\033[0m\n",
				i+1, truncate(l.DisplayAddress, 32), *l.PricePerBed, Savings(l))
		}
	}
	fmt.Fprintln(w)

	if r.Recommendation != nil {
		l := r.Recommendation
		fmt.Fprintf(w, "\033[1;33m  Recommendation\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  Your most underpriced flat is at '%s'\n", l.DisplayAddress)
		fmt.Fprintf(w, "  Rent per bedroom \033[1;32m£%.2f\033[0m, similar properties fetch \033[1;31m£%.2f\033[0m\n",
			*l.PricePerBed, *l.PredictedPricePerBed)
		fmt.Fprintf(w, "  View it here: %s\n", r.RecommendedURL)
		fmt.Fprintln(w)
	}

	// Listings by price frequency
	fmt.Fprintf(w, "\033[1;33m  Listings by Price Frequency\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ByFrequency) == 0 {
		fmt.Fprintf(w, "  No frequency data\n")
	} else {
		type freqCount struct {
			freq  string
			count int
		}
		var freqs []freqCount
		for f, cnt := range r.ByFrequency {
			freqs = append(freqs, freqCount{f, cnt})
		}
		sort.Slice(freqs, func(i, j int) bool {
			return freqs[i].count > freqs[j].count
		})
		for _, fc := range freqs {
			fmt.Fprintf(w, "  %-12s %d\n", fc.freq, fc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
