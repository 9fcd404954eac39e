// Package calibration loads OCA calibration files and maps logical channel
// codes to the byte codes the receiver uses to address coefficient memory.
package calibration
