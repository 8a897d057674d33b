package keys

import (
	"fmt"
	"strings"
)

func GenCapsuleKey(capsuleID string) string {
	return fmt.Sprintf(CapsuleKey, capsuleID)
}

func GenEntryKey(capsuleID string, createdNS int64, entryID string) string {
	return fmt.Sprintf(EntryKey, capsuleID, PadTS(createdNS), entryID)
}

func GenEntryPrefix(capsuleID string) string {
	return fmt.Sprintf(EntryPrefix, capsuleID)
}

func GenUserKey(email string) string {
	return fmt.Sprintf(UserKey, strings.ToLower(email))
}

func GenRelUserCapsule(email, capsuleID string) string {
	return fmt.Sprintf(RelUserCapsule, strings.ToLower(email), capsuleID)
}

func GenRelUserPrefix(email string) string {
	return fmt.Sprintf(RelUserPrefix, strings.ToLower(email))
}

func GenUnlockMarkerKey(kind, id string) string {
	return fmt.Sprintf(UnlockMarkerKey, kind, id)
}

func PadTS(ts int64) string {
	if ts < 0 {
		ts = 0
	}
	return fmt.Sprintf("%0*d", TSPadWidth, ts)
}
