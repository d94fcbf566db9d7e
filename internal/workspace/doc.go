// Package workspace prepares the on-disk result tree for a build attempt.
//
// Layout per chroot:
//
//	<destdir>/<chroot>/                 chroot dir (created on demand)
//	<destdir>/<chroot>/<pkg basename>/  per-package results
//	<destdir>/<chroot>/<pkg basename>/fail  marker left by a failed attempt
//
// Preparation is idempotent and safe to repeat before every attempt.
package workspace
