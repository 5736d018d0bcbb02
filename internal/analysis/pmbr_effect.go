package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"pmbr/domain/trial"
)

// ErrInsufficientData is returned when a condition has fewer than two correct trials
var ErrInsufficientData = errors.New("insufficient data for analysis")

// EffectResult compares probe RT after an ipsilateral priming movement against probe RT
// after a contralateral one. A positive EffectMs is the PMBR slowing.
type EffectResult struct {
	IpsilateralMeanRT   float64 `json:"ipsilateral_mean_rt_ms"`
	ContralateralMeanRT float64 `json:"contralateral_mean_rt_ms"`
	EffectMs            float64 `json:"effect_ms"`
	TStatistic          float64 `json:"t_statistic"`
	DegreesOfFreedom    float64 `json:"degrees_of_freedom"`
	PValue              float64 `json:"p_value"`
	CohensD             float64 `json:"cohens_d"`
	NIpsilateral        int     `json:"n_ipsilateral"`
	NContralateral      int     `json:"n_contralateral"`
}

// PMBREffect runs Welch's t-test on correct probe RTs, ipsilateral vs contralateral
func PMBREffect(records []trial.Record) (*EffectResult, error) {
	ipsi := trial.ConditionIpsilateral
	contra := trial.ConditionContralateral
	group1 := CorrectProbeRTs(records, &ipsi)
	group2 := CorrectProbeRTs(records, &contra)

	if len(group1) < 2 || len(group2) < 2 {
		return nil, fmt.Errorf("%w: %d ipsilateral and %d contralateral correct trials", ErrInsufficientData, len(group1), len(group2))
	}

	n1, n2 := float64(len(group1)), float64(len(group2))
	mean1, var1 := stat.MeanVariance(group1, nil)
	mean2, var2 := stat.MeanVariance(group2, nil)

	result := &EffectResult{
		IpsilateralMeanRT:   mean1,
		ContralateralMeanRT: mean2,
		EffectMs:            mean1 - mean2,
		NIpsilateral:        len(group1),
		NContralateral:      len(group2),
		PValue:              1.0,
	}

	se2 := var1/n1 + var2/n2
	if se2 == 0 {
		return result, nil
	}

	// Welch's t-statistic and Welch-Satterthwaite degrees of freedom
	result.TStatistic = result.EffectMs / math.Sqrt(se2)
	result.DegreesOfFreedom = se2 * se2 / (math.Pow(var1/n1, 2)/(n1-1) + math.Pow(var2/n2, 2)/(n2-1))

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: result.DegreesOfFreedom}
	result.PValue = 2 * (1 - tDist.CDF(math.Abs(result.TStatistic)))

	pooledSD := math.Sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2))
	if pooledSD > 0 {
		result.CohensD = result.EffectMs / pooledSD
	}
	return result, nil
}
