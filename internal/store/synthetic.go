package store

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Synthetic scenario names. Each scenario perturbs the gaussian baseline
// inside a fault window spanning 40%–60% of the trace.
const (
	ScenarioNormal          = "normal"
	ScenarioOverloadTrip    = "overload_trip"
	ScenarioMiscoordination = "miscoordination"
	ScenarioTheftOverload   = "theft_overload"
)

// ScenarioDescriptions maps each synthetic scenario to its summary, used to
// seed the scenarios table.
var ScenarioDescriptions = map[string]string{
	ScenarioNormal:          "steady-state operation, gaussian noise only",
	ScenarioOverloadTrip:    "sustained overcurrent followed by a 50 element trip",
	ScenarioMiscoordination: "downstream fault cleared upstream; 27 asserts before the 50",
	ScenarioTheftOverload:   "slow unmetered load ramp with a late overcurrent pickup",
}

// SyntheticAssets lists the bus identifiers every synthetic trace covers.
var SyntheticAssets = []string{"bus_1", "bus_2", "bus_3"}

// Nominal operating point of the synthetic feeder.
const (
	baseVoltageKV   = 13.8
	baseCurrentA    = 100.0
	baseFrequencyHz = 60.0
)

// GenerateScenario produces a deterministic 1 Hz trace of n samples per
// asset for the named scenario, starting at start. The same seed always
// yields the same trace.
func GenerateScenario(scenario string, n int, start time.Time, seed int64) ([]SignalRow, error) {
	if _, ok := ScenarioDescriptions[scenario]; !ok {
		return nil, fmt.Errorf("unknown synthetic scenario %q", scenario)
	}
	if n <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", n)
	}
	rng := rand.New(rand.NewSource(seed))

	faultStart := int(0.4 * float64(n))
	faultEnd := int(0.6 * float64(n))
	faultLen := faultEnd - faultStart

	rows := make([]SignalRow, 0, n*len(SyntheticAssets))
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Second).Format("2006-01-02 15:04:05")
		inFault := i >= faultStart && i < faultEnd

		for _, asset := range SyntheticAssets {
			row := SignalRow{
				Timestamp:   ts,
				AssetID:     asset,
				Scenario:    scenario,
				VoltageKV:   baseVoltageKV + rng.NormFloat64()*0.05,
				CurrentA:    baseCurrentA + rng.NormFloat64()*2.0,
				FrequencyHz: baseFrequencyHz + rng.NormFloat64()*0.01,
			}

			// Faults manifest on bus_1; the other buses see normal load.
			if inFault && asset == "bus_1" {
				progress := float64(i-faultStart) / float64(faultLen)
				switch scenario {
				case ScenarioOverloadTrip:
					row.CurrentA += 80
					row.RelayOvercurrent = true
				case ScenarioMiscoordination:
					row.CurrentA += 50
					row.VoltageKV -= 0.7
					row.RelayUndervoltage = progress < 0.15
					row.RelayOvercurrent = progress >= 0.10
				case ScenarioTheftOverload:
					row.CurrentA += 60 * progress
					row.VoltageKV -= 0.4 * progress
					row.RelayOvercurrent = progress >= 0.60
				}
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// SeedSyntheticData fills a store with every synthetic scenario, n samples
// per asset each, and registers the scenario descriptors. Intended for dev
// databases and integration tests.
func SeedSyntheticData(ctx context.Context, st Store, n int, seed int64) error {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, scenario := range []string{ScenarioNormal, ScenarioOverloadTrip, ScenarioMiscoordination, ScenarioTheftOverload} {
		rows, err := GenerateScenario(scenario, n, start, seed+int64(i))
		if err != nil {
			return err
		}
		if err := st.AppendSignals(ctx, rows); err != nil {
			return fmt.Errorf("seed %s: %w", scenario, err)
		}
		if err := st.UpsertScenario(ctx, scenario, ScenarioDescriptions[scenario]); err != nil {
			return fmt.Errorf("register %s: %w", scenario, err)
		}
	}
	return nil
}
