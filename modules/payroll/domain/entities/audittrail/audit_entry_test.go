package audittrail

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func validEntry() *Entry {
	return &Entry{
		SubjectID:   uuid.New(),
		SubjectName: "J. Driver",
		Action:      ActionUpdate,
		Field:       FieldDriverPercent,
		PerformedBy: "dispatcher",
		SessionID:   uuid.New(),
	}
}

func TestEntryValidate(t *testing.T) {
	require.NoError(t, validEntry().Validate())

	e := validEntry()
	e.SubjectID = uuid.Nil
	require.ErrorContains(t, e.Validate(), "subject_id")

	e = validEntry()
	e.Action = Action("patched")
	require.ErrorContains(t, e.Validate(), "unknown audit action")

	e = validEntry()
	e.Field = Field("salary")
	require.ErrorContains(t, e.Validate(), "unknown audit field")

	e = validEntry()
	e.PerformedBy = ""
	require.ErrorContains(t, e.Validate(), "performed_by")

	e = validEntry()
	e.SessionID = uuid.Nil
	require.ErrorContains(t, e.Validate(), "session_id")
}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"create", "update", "delete", "bulk_update", "final_update"} {
		_, err := ParseAction(s)
		require.NoError(t, err)
	}
	_, err := ParseAction("merge")
	require.Error(t, err)
}

func TestParseField(t *testing.T) {
	for _, s := range []string{
		"kind", "driverPercent", "companyPercent", "serviceFeePercent",
		"flatRateAmount", "perMileRate", "effectiveDate",
	} {
		_, err := ParseField(s)
		require.NoError(t, err)
	}
	_, err := ParseField("bonus")
	require.Error(t, err)
}
