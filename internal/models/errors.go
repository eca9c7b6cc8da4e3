package models

import "errors"

// Common validation errors for models.
var (
	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrPathRequired indicates a required filesystem path is empty.
	ErrPathRequired = errors.New("path is required")

	// ErrPathNotAbsolute indicates a filesystem path that is not absolute.
	ErrPathNotAbsolute = errors.New("path must be absolute")

	// ErrFolderRequired indicates a media file without an owning folder.
	ErrFolderRequired = errors.New("folder_id is required")

	// ErrFileRequired indicates a playlist entry without a media file.
	ErrFileRequired = errors.New("media_file_id is required")

	// ErrUsernameRequired indicates a required username is empty.
	ErrUsernameRequired = errors.New("username is required")

	// ErrTargetFormatRequired indicates a transcoding profile without a target format.
	ErrTargetFormatRequired = errors.New("target_format is required")

	// ErrStepRequired indicates a transcoding profile without a first step.
	ErrStepRequired = errors.New("step1 is required")

	// ErrInvalidBitRate indicates a negative bit rate.
	ErrInvalidBitRate = errors.New("bit rate must not be negative")
)
