package services

import (
	"github.com/rotisserie/eris"

	"rental-sync/metrics"
	"rental-sync/models"
	"rental-sync/utils"
)

// Inclusive ranges a listing must fall in to be used by the price model.
const (
	MinTravelTime  = 60.0
	MaxTravelTime  = 5400.0
	MinBathrooms   = 1.0
	MaxBathrooms   = 6.0
	MinPricePerBed = 100.0
	MaxPricePerBed = 10000.0

	weeksPerMonth = 52.0 / 12.0
)

// Predictor maps feature rows of (travel_time, bathrooms) to one predicted
// monthly price per bed each.
type Predictor interface {
	Predict(features [][]float64) ([]float64, error)
}

// PredictorFunc adapts a plain function to Predictor.
type PredictorFunc func(features [][]float64) ([]float64, error)

func (f PredictorFunc) Predict(features [][]float64) ([]float64, error) {
	return f(features)
}

// Enricher prepares listings for the price model and attaches its output.
type Enricher struct {
	logger *utils.Logger
}

func NewEnricher(logger *utils.Logger) *Enricher {
	return &Enricher{logger: logger}
}

// PrepareForModel keeps listings whose frequency is in frequencies, puts
// weekly prices on a monthly footing and drops anything outside the
// travel-time, bathroom or price ranges. Inputs are left untouched; the
// result holds copies.
func (e *Enricher) PrepareForModel(listings []*models.Listing, frequencies []string) []*models.Listing {
	allowed := make(map[string]bool, len(frequencies))
	for _, f := range frequencies {
		allowed[f] = true
	}

	kept := make([]*models.Listing, 0, len(listings))
	excluded := make(map[string]int)
	for _, l := range listings {
		if !allowed[l.PriceFrequency] {
			excluded["frequency"]++
			continue
		}

		ppb, ok := models.ToFloat(floatValue(l.PricePerBed))
		if !ok {
			excluded["price_per_bed"]++
			continue
		}
		if l.PriceFrequency == models.FrequencyWeekly {
			ppb *= weeksPerMonth
		}

		tt, ok := models.ToFloat(floatValue(l.TravelTime))
		if !ok || tt < MinTravelTime || tt > MaxTravelTime {
			excluded["travel_time"]++
			continue
		}
		baths, ok := models.ToFloat(l.Bathrooms)
		if !ok || baths < MinBathrooms || baths > MaxBathrooms {
			excluded["bathrooms"]++
			continue
		}
		if ppb < MinPricePerBed || ppb > MaxPricePerBed {
			excluded["price_per_bed"]++
			continue
		}

		c := l.Clone()
		c.PricePerBed = models.Float(ppb)
		c.Bathrooms = baths
		kept = append(kept, c)
	}

	for reason, n := range excluded {
		metrics.ListingsFiltered.WithLabelValues(reason).Add(float64(n))
		e.logger.Debug("[regression] Excluded %d listing(s) on %s", n, reason)
	}
	e.logger.Info("[regression] %d of %d listings usable for the price model", len(kept), len(listings))
	return kept
}

// AttachPredictions calls predictor once for the whole batch and returns
// copies of listings with PredictedPricePerBed set. Listings must already
// have passed PrepareForModel.
func (e *Enricher) AttachPredictions(listings []*models.Listing, predictor Predictor) ([]*models.Listing, error) {
	if len(listings) == 0 {
		return []*models.Listing{}, nil
	}

	features, err := FeatureMatrix(listings)
	if err != nil {
		return nil, err
	}

	predictions, err := predictor.Predict(features)
	if err != nil {
		return nil, eris.Wrap(err, "predict price per bed")
	}
	if len(predictions) != len(listings) {
		return nil, eris.Errorf("predictor returned %d values for %d listings", len(predictions), len(listings))
	}

	out := make([]*models.Listing, len(listings))
	for i, l := range listings {
		c := l.Clone()
		c.PredictedPricePerBed = models.Float(predictions[i])
		out[i] = c
	}
	return out, nil
}

// FeatureMatrix returns the (travel_time, bathrooms) row of each listing.
func FeatureMatrix(listings []*models.Listing) ([][]float64, error) {
	features := make([][]float64, len(listings))
	for i, l := range listings {
		tt, ok := models.ToFloat(floatValue(l.TravelTime))
		if !ok {
			return nil, eris.Errorf("listing %s has no travel_time", l.ID)
		}
		baths, ok := models.ToFloat(l.Bathrooms)
		if !ok {
			return nil, eris.Errorf("listing %s has no numeric bathrooms", l.ID)
		}
		features[i] = []float64{tt, baths}
	}
	return features, nil
}

func floatValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
