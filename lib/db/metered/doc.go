// Package metered provides a db.ByteStore decorator that records every
// backend operation in VictoriaMetrics counters and histograms:
//
//	dstruct_backend_ops_total{engine="oak",op="get"}
//	dstruct_backend_errors_total{engine="oak",op="get"}
//	dstruct_backend_op_duration_seconds{engine="oak",op="get"}
//
// Wrap an engine before handing it to a schema or store:
//
//	set := metrics.NewSet()
//	bs := metered.New(oak.NewOakDB(nil), set)
//	...
//	set.WritePrometheus(os.Stdout)
package metered
