package keys

const (
	// notation dictionary for key formats:
	// c   = capsule
	// e   = entry
	// u   = user (account, keyed by lowercase email)
	// rel = relationship marker
	// unl = unlock notification marker
	// All segments are separated by ":"
	// <...> = variable segment (e.g. <capsule_id>, <entry_id>)

	// primary storage key formats
	CapsuleKey = "c:%s"         // c:<capsule_id>
	EntryKey   = "c:%s:e:%s:%s" // c:<capsule_id>:e:<created_ns>:<entry_id>
	UserKey    = "u:%s"         // u:<email>

	// prefixes
	CapsulePrefix      = "c:"
	EntryPrefix        = "c:%s:e:" // c:<capsule_id>:e:
	UserPrefix         = "u:"
	RelUserPrefix      = "rel:u:%s:c:" // rel:u:<email>:c:
	UnlockMarkerPrefix = "unl:"

	// relationship markers
	RelUserCapsule = "rel:u:%s:c:%s" // rel:u:<email>:c:<capsule_id>

	// unlock notification markers
	UnlockMarkerKey = "unl:%s:%s" // unl:<capsule|entry>:<id>

	// padding widths (fixed for lexicographic ordering)
	TSPadWidth = 20 // e.g. %020d
)

// Unlock marker kinds.
const (
	MarkerCapsule = "capsule"
	MarkerEntry   = "entry"
)
