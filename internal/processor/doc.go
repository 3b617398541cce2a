// Package processor applies post-download transformations with ffmpeg.
//
// A ProcessingConfig is first validated, then turned into a Plan whose steps
// always run in the same order: crop, scale, rotate, frame rate, audio
// handling, and finally encoding. The whole plan is executed as a single
// ffmpeg invocation writing to a temp file beside the target, which is renamed
// into place only after ffmpeg exits cleanly. The source file is never
// written to.
//
// Output naming:
//
//	<stem>.processed.<ext>   video transformations
//	<stem>.<audio_format>    audio extraction
package processor
