package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"srgscan/domain/dataset"

	"gonum.org/v1/gonum/stat/distuv"
)

// DGEConfig parameterizes a synthetic capture-model count matrix.
//
// Ordinary genes draw a Poisson count with a per-gene rate in every cell.
// Planted (restricted) genes are expressed only in a random RestrictedFraction
// of cells at rate/RestrictedFraction, so they are detected in fewer cells
// than their per-cell expression predicts.
type DGEConfig struct {
	Genes int
	Cells int
	Seed  uint64

	MinRate float64 // lower bound of the log-uniform per-cell rate
	MaxRate float64 // upper bound of the log-uniform per-cell rate

	PlantEvery         int     // every PlantEvery-th gene is restricted; 0 disables
	RestrictedFraction float64 // share of cells expressing a restricted gene
	PlantedMinRate     float64 // restricted genes draw their rate from [PlantedMinRate, MaxRate]
}

// DefaultDGEConfig returns a 300 gene x 400 cell matrix with one restricted
// gene in ten.
func DefaultDGEConfig() DGEConfig {
	return DGEConfig{
		Genes:              300,
		Cells:              400,
		Seed:               42,
		MinRate:            0.02,
		MaxRate:            1.0,
		PlantEvery:         10,
		RestrictedFraction: 0.1,
		PlantedMinRate:     0.5,
	}
}

// DGEFixture is a generated matrix plus the ids of the planted genes.
type DGEFixture struct {
	Matrix  *dataset.Matrix
	Planted []string
	Rates   []float64 // per-gene nominal rate, aligned to Matrix.GeneIDs
}

// IsPlanted reports whether geneID was generated as restricted.
func (f *DGEFixture) IsPlanted(geneID string) bool {
	for _, p := range f.Planted {
		if p == geneID {
			return true
		}
	}
	return false
}

// GenerateDGE builds a deterministic matrix for cfg.
func GenerateDGE(cfg DGEConfig) (*DGEFixture, error) {
	if cfg.Genes <= 0 || cfg.Cells < 2 {
		return nil, fmt.Errorf("need genes > 0 and cells >= 2, got %d x %d", cfg.Genes, cfg.Cells)
	}
	if cfg.MinRate <= 0 || cfg.MaxRate < cfg.MinRate {
		return nil, fmt.Errorf("invalid rate range [%g, %g]", cfg.MinRate, cfg.MaxRate)
	}
	if cfg.PlantEvery > 0 && (cfg.RestrictedFraction <= 0 || cfg.RestrictedFraction >= 1) {
		return nil, fmt.Errorf("restricted fraction must be in (0, 1), got %g", cfg.RestrictedFraction)
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	rng := rand.New(src)

	m := &dataset.Matrix{
		GeneIDs: make([]string, cfg.Genes),
		CellIDs: make([]string, cfg.Cells),
		Counts:  make([][]int32, cfg.Genes),
	}
	for c := range m.CellIDs {
		m.CellIDs[c] = fmt.Sprintf("cell_%04d", c+1)
	}

	fx := &DGEFixture{Matrix: m, Rates: make([]float64, cfg.Genes)}
	for g := 0; g < cfg.Genes; g++ {
		planted := cfg.PlantEvery > 0 && g%cfg.PlantEvery == cfg.PlantEvery-1
		id := fmt.Sprintf("Gene%04d", g+1)
		m.GeneIDs[g] = id

		lo := cfg.MinRate
		if planted && cfg.PlantedMinRate > lo {
			lo = math.Min(cfg.PlantedMinRate, cfg.MaxRate)
		}
		rate := logUniform(rng, lo, cfg.MaxRate)
		fx.Rates[g] = rate

		row := make([]int32, cfg.Cells)
		if planted {
			fx.Planted = append(fx.Planted, id)
			pois := distuv.Poisson{Lambda: rate / cfg.RestrictedFraction, Src: src}
			for c := range row {
				if rng.Float64() < cfg.RestrictedFraction {
					row[c] = int32(pois.Rand())
				}
			}
		} else {
			pois := distuv.Poisson{Lambda: rate, Src: src}
			for c := range row {
				row[c] = int32(pois.Rand())
			}
		}
		m.Counts[g] = row
	}
	return fx, nil
}

func logUniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi == lo {
		return lo
	}
	return math.Exp(math.Log(lo) + rng.Float64()*(math.Log(hi)-math.Log(lo)))
}

// LinearTrendRecords returns n records whose inverse average expression lies
// on intercept + slope*cells_detected plus Gaussian noise of the given sd.
// Detection counts run from minCells in steps of one.
func LinearTrendRecords(n, minCells int, intercept, slope, noise float64, seed uint64) []dataset.GeneRecord {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]dataset.GeneRecord, n)
	for i := range out {
		cells := minCells + i
		inv := intercept + slope*float64(cells) + rng.NormFloat64()*noise
		out[i] = dataset.GeneRecord{
			GeneID:           fmt.Sprintf("Gene%04d", i+1),
			Index:            i,
			CellsDetected:    cells,
			InvAvgExpression: inv,
			AvgExpression:    1 / inv,
		}
	}
	return out
}
