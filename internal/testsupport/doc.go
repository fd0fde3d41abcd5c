// Package testsupport provides shared fixtures for tests: temp-dir-backed
// configurations and synthetic datasets with real .npy feature files.
package testsupport
