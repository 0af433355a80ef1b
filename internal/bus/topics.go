package bus

// Well-known topics. Nothing stops a component from publishing to an ad-hoc
// topic, but everything the pipelines exchange flows through these.
const (
	// TopicTranscript carries recognised speech as a plain string payload.
	TopicTranscript = "voice.transcript"

	// TopicEmotion carries a detected emotion label (string) whenever the
	// classifier output changes.
	TopicEmotion = "emotion.detected"

	// TopicDispatch carries an action id (string) the resolver decided to
	// fire. Consumed by the dispatch gateway agent.
	TopicDispatch = "intent.dispatch"

	// TopicDispatched carries the action id (string) of a trigger the
	// gateway successfully delivered. Observability only.
	TopicDispatched = "intent.dispatched"

	// TopicGatewayStatus carries human-readable connection state of the
	// avatar-control endpoint ("connecting", "connected", "authenticated",
	// "connection_failed", "disconnected").
	TopicGatewayStatus = "gateway.status"

	// TopicVoiceStatus carries recognition pipeline state ("listening",
	// "transcribing", "error", "stopped").
	TopicVoiceStatus = "voice.status"

	// TopicEmotionStatus carries emotion pipeline state ("initialized",
	// "detecting", "stopped", "error").
	TopicEmotionStatus = "emotion.status"

	// TopicReady is published once with payload true when the voice capture
	// stream is open and decoding can begin.
	TopicReady = "voice.ready"
)
