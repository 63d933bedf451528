package storage

import (
	"context"
	"database/sql"
	"errors"
)

// StudyAccount is the persistent per-user accumulator. Today's counters only
// ever grow; the daily reset snapshots them into the yesterday columns and
// zeroes them.
type StudyAccount struct {
	UserID          string
	CamOnMinutes    int
	CamOffMinutes   int
	MessageCount    int
	YesterdayCamOn  int
	YesterdayCamOff int
}

func (a StudyAccount) TotalMinutes() int {
	return a.CamOnMinutes + a.CamOffMinutes
}

// GetAccount returns the zero account when the user has no row yet; callers
// treat absence the same as an empty accumulator.
func (s *Store) GetAccount(ctx context.Context, userID string) (StudyAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, cam_on_minutes, cam_off_minutes, message_count,
		yesterday_cam_on, yesterday_cam_off
		FROM study_accounts WHERE user_id = ?`, userID)

	var account StudyAccount
	err := row.Scan(
		&account.UserID,
		&account.CamOnMinutes,
		&account.CamOffMinutes,
		&account.MessageCount,
		&account.YesterdayCamOn,
		&account.YesterdayCamOff,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudyAccount{UserID: userID}, nil
		}
		return StudyAccount{}, err
	}
	return account, nil
}

// AddVoiceMinutes credits minutes to the camera bucket that was active during
// the elapsed interval, creating the account row on first contact.
func (s *Store) AddVoiceMinutes(ctx context.Context, userID string, cameraOn bool, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	column := "cam_off_minutes"
	if cameraOn {
		column = "cam_on_minutes"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO study_accounts (user_id, `+column+`) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET `+column+` = `+column+` + excluded.`+column,
		userID, minutes)
	return err
}

func (s *Store) IncrementMessageCount(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO study_accounts (user_id, message_count) VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET message_count = message_count + 1
	`, userID)
	return err
}

// TopAccounts lists accounts ordered by the requested bucket, today or
// yesterday, skipping zero rows.
func (s *Store) TopAccounts(ctx context.Context, cameraOn, yesterday bool, limit int) ([]StudyAccount, error) {
	column := "cam_off_minutes"
	switch {
	case cameraOn && yesterday:
		column = "yesterday_cam_on"
	case cameraOn:
		column = "cam_on_minutes"
	case yesterday:
		column = "yesterday_cam_off"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, cam_on_minutes, cam_off_minutes, message_count,
		yesterday_cam_on, yesterday_cam_off
		FROM study_accounts
		WHERE `+column+` > 0
		ORDER BY `+column+` DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []StudyAccount
	for rows.Next() {
		var account StudyAccount
		if err := rows.Scan(
			&account.UserID,
			&account.CamOnMinutes,
			&account.CamOffMinutes,
			&account.MessageCount,
			&account.YesterdayCamOn,
			&account.YesterdayCamOff,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// Rank returns the 1-based cam-on rank of userID among all accounts. A user
// with no row ranks last among the counted rows plus one.
func (s *Store) Rank(ctx context.Context, userID string) (int, error) {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM study_accounts WHERE cam_on_minutes > ?`, account.CamOnMinutes)
	var ahead int
	if err := row.Scan(&ahead); err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// DailyReset moves today's voice totals into the yesterday snapshot and
// zeroes today's counters for every account, in one statement.
func (s *Store) DailyReset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE study_accounts SET
			yesterday_cam_on = cam_on_minutes,
			yesterday_cam_off = cam_off_minutes,
			cam_on_minutes = 0,
			cam_off_minutes = 0
	`)
	return err
}
