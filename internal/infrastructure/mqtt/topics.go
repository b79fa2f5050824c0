package mqtt

import "fmt"

// Topic prefixes for the wrapper's MQTT hierarchy.
const (
	// TopicPrefixServer is the base for topics about the supervised server.
	TopicPrefixServer = "webui/server"

	// TopicPrefixSystem is the base for topics about the wrapper itself.
	TopicPrefixSystem = "webui/system"
)

// Topics provides builders for the wrapper's MQTT topics.
//
//	topic := mqtt.Topics{}.ServerHealth()
//	// Returns: "webui/server/health"
type Topics struct{}

// ServerHealth returns the retained topic carrying the latest health state.
//
// Example: webui/server/health
func (Topics) ServerHealth() string {
	return fmt.Sprintf("%s/health", TopicPrefixServer)
}

// ServerCommand returns the topic on which remote commands are accepted.
//
// Example: webui/server/command
func (Topics) ServerCommand() string {
	return fmt.Sprintf("%s/command", TopicPrefixServer)
}

// ServerCheckResult returns the topic answering check commands.
//
// Example: webui/server/check
func (Topics) ServerCheckResult() string {
	return fmt.Sprintf("%s/check", TopicPrefixServer)
}

// SystemStatus returns the wrapper's online/offline topic (also the LWT).
//
// Example: webui/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
