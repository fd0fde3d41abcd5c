// Package checkpoint persists encoder snapshots as msgpack envelopes. A
// checkpoint carries the parameter state together with the validation
// accuracy and step that earned it, so a resumed or inspected run knows
// exactly what it loaded. Writes go through a temp file and rename so a
// crash mid-save never corrupts the previous checkpoint.
package checkpoint
