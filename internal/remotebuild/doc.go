// Package remotebuild drives the build of one source package for one chroot
// on a remote builder.
//
// Each attempt runs, strictly in order:
//
//  1. prepare the result directory (clear a stale fail marker, create the chroot dir)
//  2. build remotely
//  3. download results into the chroot dir
//  4. append the build output to the shared mockchain.log
//  5. on success, sign (optional) and regenerate repository metadata
//
// Only build pipeline errors repeat the whole attempt; the number of attempts
// is bounded by the retry policy. Every stage transition and every error is
// reported to the callback sink before the next attempt starts.
package remotebuild
