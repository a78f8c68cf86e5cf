// Package config loads the service configuration.
//
// Defaults are overlaid by an optional YAML file and then by
// MANAGEDMODEL_* environment variables; Load validates the result and
// reports every bad setting at once. Keep secrets such as the MQTT
// password and InfluxDB token in the environment or a .env file:
//
//	cfg, err := config.Load(os.Getenv("MANAGEDMODEL_CONFIG"))
//	if err != nil {
//	    return err
//	}
package config
