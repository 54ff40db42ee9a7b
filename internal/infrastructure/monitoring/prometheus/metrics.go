package prometheus

import "time"

// EngineMetrics holds all engine metrics.
type EngineMetrics struct {
	// Training
	TrainingStepsTotal   CounterVec
	TrainingStepDuration HistogramVec
	TrainingLoss         GaugeVec
	TrainingBestLoss     GaugeVec
	CheckpointsTotal     CounterVec

	// Generation
	MoleculesGeneratedTotal CounterVec
	GenerationStepsTotal    CounterVec
	GenerationStepDuration  HistogramVec
	GeneratedAtomCount      HistogramVec
	SamplingAnomaliesTotal  CounterVec

	// Dataset
	FragmentsBuiltTotal CounterVec
	BatchNodeCount      HistogramVec

	// System Health
	ErrorsTotal CounterVec
}

// Default buckets.
var (
	DefaultStepDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultAtomCountBuckets    = []float64{2, 5, 10, 15, 20, 25, 30, 40, 50}
	DefaultNodeCountBuckets    = []float64{8, 16, 32, 64, 128, 256, 512}
)

// NewEngineMetrics registers all metrics and returns the EngineMetrics struct.
func NewEngineMetrics(collector MetricsCollector) *EngineMetrics {
	m := &EngineMetrics{}

	// Training
	m.TrainingStepsTotal = collector.RegisterCounter("training_steps_total", "Optimizer steps taken", "status")
	m.TrainingStepDuration = collector.RegisterHistogram("training_step_duration_seconds", "Wall time per optimizer step", DefaultStepDurationBuckets, "phase")
	m.TrainingLoss = collector.RegisterGauge("training_loss", "Most recent loss value", "term")
	m.TrainingBestLoss = collector.RegisterGauge("training_best_loss", "Best total loss seen this run", "run_id")
	m.CheckpointsTotal = collector.RegisterCounter("checkpoints_total", "Checkpoints written", "kind")

	// Generation
	m.MoleculesGeneratedTotal = collector.RegisterCounter("molecules_generated_total", "Molecules produced", "outcome")
	m.GenerationStepsTotal = collector.RegisterCounter("generation_steps_total", "Autoregressive growth steps", "decision")
	m.GenerationStepDuration = collector.RegisterHistogram("generation_step_duration_seconds", "Wall time per growth step", DefaultStepDurationBuckets, "decision")
	m.GeneratedAtomCount = collector.RegisterHistogram("generated_atom_count", "Atoms per finished molecule", DefaultAtomCountBuckets)
	m.SamplingAnomaliesTotal = collector.RegisterCounter("sampling_anomalies_total", "Degenerate sampling events", "code")

	// Dataset
	m.FragmentsBuiltTotal = collector.RegisterCounter("fragments_built_total", "Teacher-forced fragments constructed", "kind")
	m.BatchNodeCount = collector.RegisterHistogram("batch_node_count", "Nodes per training batch", DefaultNodeCountBuckets)

	// System Health
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// Helpers

// RecordTrainingStep records one optimizer step with its loss terms.
func RecordTrainingStep(m *EngineMetrics, duration time.Duration, focus, species, position float64) {
	m.TrainingStepsTotal.WithLabelValues("ok").Inc()
	m.TrainingStepDuration.WithLabelValues("step").Observe(duration.Seconds())
	m.TrainingLoss.WithLabelValues("focus").Set(focus)
	m.TrainingLoss.WithLabelValues("species").Set(species)
	m.TrainingLoss.WithLabelValues("position").Set(position)
	m.TrainingLoss.WithLabelValues("total").Set(focus + species + position)
}

// RecordMolecule records one finished generation attempt.
func RecordMolecule(m *EngineMetrics, atoms int, stopped bool) {
	outcome := "max_atoms"
	if stopped {
		outcome = "stopped"
	}
	m.MoleculesGeneratedTotal.WithLabelValues(outcome).Inc()
	m.GeneratedAtomCount.WithLabelValues().Observe(float64(atoms))
}

// RecordSamplingAnomaly counts a degenerate sampling event by error code.
func RecordSamplingAnomaly(m *EngineMetrics, code string) {
	m.SamplingAnomaliesTotal.WithLabelValues(code).Inc()
}

// RecordError counts an error by component and code.
func RecordError(m *EngineMetrics, component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
