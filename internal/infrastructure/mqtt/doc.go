// Package mqtt publishes entity change events to an MQTT broker.
//
// Every successful insert, update or remove issued through the controller
// is published as a JSON ChangeEvent on
//
//	managedmodel/entity/<table>/<action>
//
// The client keeps a retained status message on managedmodel/system/status
// and registers a Last Will so subscribers see the service go offline when
// it dies without closing.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	ctrl := controller.New(db, controller.WithPublisher(client))
package mqtt
