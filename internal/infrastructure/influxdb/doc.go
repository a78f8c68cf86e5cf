// Package influxdb writes statement metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The client is handed
// to the database as its MetricsRecorder, so every statement executed on the
// worker produces a point:
//
//	statements,kind=INSERT,status=ok,table=Person elapsed_us=412i,count=1i
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	db.SetMetrics(client)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Async write failures are delivered to the SetOnError
// callback.
package influxdb
