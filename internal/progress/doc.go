// Package progress publishes transfer events to an MQTT broker so a
// dashboard or home-automation system can follow a calibration upload.
// Messages are JSON, one topic per event kind under a configurable prefix.
package progress
