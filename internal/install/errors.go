package install

import (
	"errors"
	"fmt"

	"github.com/sidecartridge/booster/boosterd/internal/applications"
	"github.com/sidecartridge/booster/boosterd/internal/lookup"
)

var (
	// ErrBase64 is returned when an encoded descriptor isn't valid base64.
	ErrBase64 = errors.New("error decoding base64")

	// ErrParseJSON is returned when a descriptor isn't a JSON object.
	ErrParseJSON = applications.ErrParseJSON

	// ErrParseMD5 is returned when a descriptor checksum isn't 32 hex characters.
	ErrParseMD5 = applications.ErrParseMD5

	// ErrCannotOpenFile is returned when a staging file can't be opened or written.
	ErrCannotOpenFile = errors.New("cannot open file")

	// ErrCannotCloseFile is returned when the staging binary can't be closed.
	ErrCannotCloseFile = errors.New("cannot close file")

	// ErrForcedAbort is returned when finishing a download that didn't complete.
	ErrForcedAbort = errors.New("download aborted")

	// ErrCannotStartDownload is returned when no request could be issued.
	ErrCannotStartDownload = errors.New("cannot start download")

	// ErrCannotReadFile is returned when the staging binary can't be read back.
	ErrCannotReadFile = errors.New("cannot read file")

	// ErrCannotParseURL is returned when the descriptor binary URL is malformed.
	ErrCannotParseURL = errors.New("cannot parse URL")

	// ErrMD5Mismatch is returned when the downloaded binary doesn't match the descriptor.
	ErrMD5Mismatch = errors.New("MD5 mismatch")

	// ErrCannotRenameFile is returned when the staging files can't be committed.
	ErrCannotRenameFile = errors.New("cannot rename file")

	// ErrCannotCreateConfig is returned when no configuration slot can be assigned.
	ErrCannotCreateConfig = errors.New("cannot create configuration")

	// ErrCannotDeleteConfigSector is returned when the slot configuration sector can't be erased.
	ErrCannotDeleteConfigSector = errors.New("cannot delete configuration sector")

	// ErrHTTP is returned when the transfer failed or the server didn't answer 200.
	ErrHTTP = errors.New("HTTP error")

	// ErrTimeout is returned when a download runs longer than its timeout.
	ErrTimeout = errors.New("download timed out")

	// ErrDownloadInProgress is returned when a download is requested while another runs.
	ErrDownloadInProgress = errors.New("download already in progress")

	// ErrTooLarge is returned when the binary is larger than the allowed size.
	ErrTooLarge = errors.New("binary too large")

	// ErrStorageNotReady is returned when the removable storage isn't available.
	ErrStorageNotReady = errors.New("storage not ready")

	// ErrNotUUID is returned when an identifier isn't a valid UUID4.
	ErrNotUUID = errors.New("not a valid UUID4")
)

// PersistError reports a lookup table that couldn't be written back to flash.
// The operation it is returned from otherwise completed.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist lookup table: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

var messages = []struct {
	err error
	msg string
}{
	{ErrBase64, "Error decoding base64"},
	{ErrParseJSON, "Error parsing JSON"},
	{ErrParseMD5, "Error parsing MD5"},
	{ErrCannotOpenFile, "Cannot open file"},
	{ErrCannotCloseFile, "Cannot close file"},
	{ErrForcedAbort, "Download aborted"},
	{ErrCannotStartDownload, "Cannot start download"},
	{ErrCannotReadFile, "Cannot read file"},
	{ErrCannotParseURL, "Cannot parse URL"},
	{ErrMD5Mismatch, "MD5 mismatch"},
	{ErrCannotRenameFile, "Cannot rename file"},
	{ErrCannotCreateConfig, "Cannot create configuration"},
	{ErrCannotDeleteConfigSector, "Cannot delete configuration sector"},
	{ErrHTTP, "HTTP error"},
	{ErrTimeout, "Download timed out"},
	{ErrDownloadInProgress, "Download in progress"},
	{ErrTooLarge, "Binary too large"},
	{ErrStorageNotReady, "Storage not ready"},
	{ErrNotUUID, "Not a valid UUID4"},
	{lookup.ErrNotFound, "Application not found"},
}

// ErrorString returns the user facing message for an error.
func ErrorString(err error) string {
	if err == nil {
		return "No error"
	}

	var persistErr *PersistError
	if errors.As(err, &persistErr) {
		return "Cannot save lookup table"
	}

	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}

	return err.Error()
}
