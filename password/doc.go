// Package password owns everything the engine knows about passwords:
// Argon2id hashing and verification (PHC string format), the strength
// policy, reuse-history checks, and age-based expiry.
//
// Hashes look like:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The hasher verifies in constant time and reports via NeedsUpgrade when a
// stored hash was produced with weaker parameters than currently configured,
// so callers can re-hash on the next successful login.
//
// The package never stores plaintext or hashes; history persistence lives in
// the history package and is consulted through an interface.
package password
