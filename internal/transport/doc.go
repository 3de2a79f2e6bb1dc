// Package transport owns the push-channel connections.
//
// A [Connection] keeps one websocket open to one logical channel, reconnecting with [Backoff] whenever the transport fails.
// It exchanges [models.Envelope] frames and knows nothing about what they mean: inbound frames go to the callback set with
// [Connection.OnEvent], state transitions to [Connection.OnStateChange].
//
// Transport errors never surface to callers. They become Reconnecting transitions and are retried until [Connection.Close].
// [Connection.Send] is the only operation that reports failure, synchronously, when the channel is not connected or its
// bounded outbound buffer is full.
package transport
