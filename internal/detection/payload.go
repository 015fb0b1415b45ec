package detection

// Summary condenses a detection run into the counts and grades a ticket or
// dashboard needs.
type Summary struct {
	NPoints       int           `json:"n_points"`
	NAnomalies    int           `json:"n_anomalies"`
	AnomalyRate   float64       `json:"anomaly_rate"`
	MeanSeverity  float64       `json:"mean_severity"`
	SeverityLevel SeverityLevel `json:"severity_level"`
}

// Meta records how the payload was produced.
type Meta struct {
	Features  []string `json:"features"`
	Detector  string   `json:"detector"`
	ModelPath string   `json:"model_path,omitempty"`
}

// Payload is the consumer-facing product of one detection run: identity,
// summary, compressed anomaly windows and provenance.
type Payload struct {
	Scenario string  `json:"scenario"`
	AssetID  string  `json:"asset_id"`
	Summary  Summary `json:"summary"`
	Windows  []Window `json:"anomaly_windows"`
	Meta     Meta    `json:"meta"`
}

// AssemblePayload combines a result, its compressed windows and the computed
// severity into a payload. Counts are copied from the result exactly as
// computed; nothing is rescored here.
func AssemblePayload(r *Result, windows []Window, meanSeverity float64, level SeverityLevel, meta Meta) *Payload {
	if windows == nil {
		windows = []Window{}
	}
	return &Payload{
		Scenario: r.Scenario,
		AssetID:  r.AssetID,
		Summary: Summary{
			NPoints:       r.NPoints,
			NAnomalies:    r.NAnomalies,
			AnomalyRate:   AnomalyRate(r.NAnomalies, r.NPoints),
			MeanSeverity:  meanSeverity,
			SeverityLevel: level,
		},
		Windows: windows,
		Meta:    meta,
	}
}
