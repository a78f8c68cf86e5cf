package mqtt

import (
	"fmt"

	"github.com/quells/managedmodel/internal/model"
)

// Topic prefixes.
const (
	// TopicPrefix is the root of every topic the service publishes.
	TopicPrefix = "managedmodel"

	// TopicPrefixEntity is the base for entity change topics.
	TopicPrefixEntity = TopicPrefix + "/entity"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for the service's MQTT topics.
//
//	topic := mqtt.Topics{}.EntityChange("Person", model.ActionInsert)
//	// Returns: "managedmodel/entity/Person/insert"
type Topics struct{}

// EntityChange returns the topic a mutation of table is published on.
//
// Example: managedmodel/entity/Person/update
func (Topics) EntityChange(table string, action model.Action) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixEntity, table, action)
}

// TableChanges returns a pattern matching every change to one table.
//
// Pattern: managedmodel/entity/Person/+
func (Topics) TableChanges(table string) string {
	return fmt.Sprintf("%s/%s/+", TopicPrefixEntity, table)
}

// AllEntityChanges returns a pattern matching every entity change.
//
// Pattern: managedmodel/entity/#
func (Topics) AllEntityChanges() string {
	return TopicPrefixEntity + "/#"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: managedmodel/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
