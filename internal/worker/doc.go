// Package worker runs build jobs dropped into a spool directory.
//
// Producers write a job JSON file into the spool root, preferably under a
// temporary name followed by a rename to *.json. Jobs are picked up on file
// system notification and by a periodic rescan, claimed by moving them into
// processing/, built by a pool of orchestrators and finally moved into done/
// or failed/ next to a *.result.json describing the outcome.
package worker
