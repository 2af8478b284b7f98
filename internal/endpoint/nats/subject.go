package nats

import (
	"fmt"
	"strings"
)

// ToNATSSubject converts an MQTT topic format to NATS subject format
// MQTT uses / as separators and +/# as wildcards
// NATS uses . as separators and */> as wildcards
// A leading / carries no hierarchy information and is dropped, so
// "/model/pose" maps to "model.pose"
func ToNATSSubject(mqttTopic string) string {
	topic := strings.TrimPrefix(mqttTopic, "/")

	// First handle wildcards
	subject := strings.ReplaceAll(topic, "+", "*")
	subject = strings.ReplaceAll(subject, "#", ">")

	// Then handle separators
	subject = strings.ReplaceAll(subject, "/", ".")

	return subject
}

// ToMQTTTopic converts a NATS subject format to MQTT topic format
// This is the reverse of ToNATSSubject
func ToMQTTTopic(natsSubject string) string {
	// First handle wildcards
	topic := strings.ReplaceAll(natsSubject, "*", "+")
	topic = strings.ReplaceAll(topic, ">", "#")

	// Then handle separators
	topic = strings.ReplaceAll(topic, ".", "/")

	return topic
}

// validateSubject validates a concrete NATS subject
func validateSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("subject cannot be empty")
	}

	if strings.Contains(subject, "*") || strings.Contains(subject, ">") {
		return fmt.Errorf("wildcards not allowed in subject names")
	}

	if strings.ContainsAny(subject, " \t\r\n") {
		return fmt.Errorf("whitespace not allowed in subjects")
	}

	for _, token := range strings.Split(subject, ".") {
		if token == "" {
			return fmt.Errorf("empty token not allowed in subject")
		}
	}

	return nil
}
