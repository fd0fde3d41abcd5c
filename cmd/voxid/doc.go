// Command voxid trains a speaker-identification encoder over precomputed
// mel-spectrogram features and classifies held-back utterances with the
// resulting checkpoint.
package main
