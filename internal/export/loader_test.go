package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matcare/matcare/internal/domain/medication"
)

func TestLoadWhere(t *testing.T) {
	where, args := loadWhere(LoadFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	cid := uuid.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, pht)
	to := from.AddDate(0, 1, 0)
	where, args = loadWhere(LoadFilter{IDs: []uuid.UUID{uuid.New()}, ClinicianID: &cid, From: &from, To: &to})
	assert.Equal(t, " WHERE a.id = ANY($1) AND a.clinician_id = $2 AND a.date >= $3 AND a.date < $4", where)
	require.Len(t, args, 4)
	assert.Equal(t, cid, args[1])
}

func TestLoader_LoadEmptySkipsMedications(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cid := uuid.New()
	mock.ExpectQuery(`FROM appointment a`).
		WithArgs(cid).
		WillReturnRows(pgxmock.NewRows(strings.Split(
			"id,patient_id,clinician_id,date,service,weight,gestational_age,status,payment_status,created_at,updated_at", ",")))

	out, err := NewLoader(mock).Load(context.Background(), LoadFilter{ClinicianID: &cid}, AllSections())
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_Medications(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	patient := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`FROM supplements WHERE patient_id = ANY\(\$1\)`).
		WithArgs([]uuid.UUID{patient}).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "patient_id", "clinician_id", "name", "strength", "amount", "frequency", "route", "status", "date", "created_at", "updated_at",
		}).AddRow(uuid.New(), patient, uuid.New(), "Ferrous sulfate", nil, nil, nil, nil, "Active", now, now, now))

	byPatient, err := NewLoader(mock).medications(context.Background(), medication.KindSupplement, []uuid.UUID{patient})
	require.NoError(t, err)
	require.Len(t, byPatient[patient], 1)
	assert.Equal(t, "Ferrous sulfate", byPatient[patient][0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
