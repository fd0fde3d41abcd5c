// Package dataset provides read-only access to the on-disk speaker corpus
// and turns it into padded training batches.
//
// A dataset root holds mapping.json (speaker name to id bijection),
// metadata.json (per-speaker utterance lists), testdata.json (inference
// inputs), and one NumPy .npy file per utterance containing a frames-by-40
// mel-spectrogram matrix. The Store owns file access; SampleSegment and
// Assemble are pure transforms; Cursor wraps the training split in an
// infinite, auto-restarting batch stream fed by parallel loader workers.
//
// Feature files are never mutated. Segments are cut fresh on every access so
// repeated passes over an utterance see different windows.
package dataset
