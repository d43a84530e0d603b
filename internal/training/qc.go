package training

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"spot-batch/pkg/geometry"
)

// DefaultMatchRadius is the matching tolerance in pixels between a ground
// truth point and a predicted point.
const DefaultMatchRadius = 3.0

// Metrics holds the match quality of one validation tile.
type Metrics struct {
	Tile           string
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
}

// Summary aggregates per-tile metrics across the validation split.
type Summary struct {
	PrecisionMean float64
	RecallMean    float64
	F1Mean        float64
	F1Std         float64
}

// Match greedily pairs ground truth points with their nearest unmatched
// prediction within the radius and returns the derived metrics.
func Match(tile string, truth, predicted []geometry.Point, radius float64) Metrics {
	used := make([]bool, len(predicted))
	tp := 0
	for _, gt := range truth {
		best := -1
		bestDist := radius
		for i, p := range predicted {
			if used[i] {
				continue
			}
			if d := gt.Distance(p); d <= bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			used[best] = true
			tp++
		}
	}

	m := Metrics{
		Tile:           tile,
		TruePositives:  tp,
		FalsePositives: len(predicted) - tp,
		FalseNegatives: len(truth) - tp,
	}
	if len(predicted) > 0 {
		m.Precision = float64(tp) / float64(len(predicted))
	}
	if len(truth) > 0 {
		m.Recall = float64(tp) / float64(len(truth))
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// Summarize computes mean precision/recall/F1 and the F1 spread.
func Summarize(ms []Metrics) Summary {
	if len(ms) == 0 {
		return Summary{}
	}
	precision := make([]float64, len(ms))
	recall := make([]float64, len(ms))
	f1 := make([]float64, len(ms))
	for i, m := range ms {
		precision[i] = m.Precision
		recall[i] = m.Recall
		f1[i] = m.F1
	}
	s := Summary{
		PrecisionMean: stat.Mean(precision, nil),
		RecallMean:    stat.Mean(recall, nil),
		F1Mean:        stat.Mean(f1, nil),
	}
	if len(ms) > 1 {
		s.F1Std = stat.StdDev(f1, nil)
	}
	return s
}

// ReadCoordinates parses a ground-truth coordinate file into points.
// Volumetric files carry a leading z column that is ignored for matching.
func ReadCoordinates(path string, volumetric bool) ([]geometry.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading coordinate file: %w", err)
	}

	yCol := 0
	if volumetric {
		yCol = 1
	}

	var points []geometry.Point
	for i, rec := range records {
		if i == 0 {
			continue
		}
		if len(rec) < yCol+2 {
			return nil, fmt.Errorf("coordinate row %d has %d fields", i+1, len(rec))
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[yCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("coordinate row %d: %w", i+1, err)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[yCol+1]), 64)
		if err != nil {
			return nil, fmt.Errorf("coordinate row %d: %w", i+1, err)
		}
		points = append(points, geometry.Point{X: x, Y: y})
	}
	return points, nil
}

// WriteMetrics writes the per-tile metrics and the summary as a CSV report.
func WriteMetrics(path string, ms []Metrics, s Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating metrics file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"tile", "tp", "fp", "fn", "precision", "recall", "f1"}); err != nil {
		return err
	}
	for _, m := range ms {
		rec := []string{
			m.Tile,
			strconv.Itoa(m.TruePositives),
			strconv.Itoa(m.FalsePositives),
			strconv.Itoa(m.FalseNegatives),
			formatMetric(m.Precision),
			formatMetric(m.Recall),
			formatMetric(m.F1),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		"mean", "", "", "",
		formatMetric(s.PrecisionMean),
		formatMetric(s.RecallMean),
		formatMetric(s.F1Mean),
	}); err != nil {
		return err
	}
	if err := w.Write([]string{"f1_std", "", "", "", "", "", formatMetric(s.F1Std)}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
