package migrations

import (
	"github.com/jmylchreest/soundrelay/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
//   - 001: Schema creation using GORM AutoMigrate
//   - 002: Default transcoding profiles
//   - 003: Composite index for directory listings
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002DefaultProfiles(),
		migration003DirectoryIndex(),
	}
}

func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create all database tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(models.All()...)
		},
		Down: func(tx *gorm.DB) error {
			all := models.All()
			// Drop in reverse so dependents go first.
			for i := len(all) - 1; i >= 0; i-- {
				if err := tx.Migrator().DropTable(all[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// DefaultProfiles are the transcoding profiles seeded on a fresh install.
// Video profiles other than flv start disabled.
func DefaultProfiles() []*models.TranscodingProfile {
	return []*models.TranscodingProfile{
		{
			Name:          "mp3 audio",
			SourceFormats: "ogg oga aac m4a flac wav wma aif aiff ape mpc shn",
			TargetFormat:  "mp3",
			Step1:         "ffmpeg -i %s -map 0:0 -b:a %bk -v 0 -f mp3 -",
			Enabled:       models.BoolPtr(true),
		},
		{
			Name:          "flv/h264 video",
			SourceFormats: "avi mpg mpeg mp4 m4v mkv mov wmv ogv divx m2ts",
			TargetFormat:  "flv",
			Step1:         "ffmpeg -ss %o -i %s -async 1 -b %bk -s %wx%h -ar 44100 -ac 2 -v 0 -f flv -vcodec libx264 -preset superfast -threads 0 -",
			Enabled:       models.BoolPtr(true),
		},
		{
			Name:          "mkv video",
			SourceFormats: "avi mpg mpeg mp4 m4v mkv mov wmv ogv divx m2ts",
			TargetFormat:  "mkv",
			Step1:         "ffmpeg -ss %o -i %s -c:v libx264 -preset superfast -b:v %bk -c:a libvorbis -f matroska -threads 0 -",
			Enabled:       models.BoolPtr(false),
		},
		{
			Name:          "mp4/h264 video",
			SourceFormats: "avi flv mpg mpeg m4v mkv mov wmv ogv divx m2ts",
			TargetFormat:  "mp4",
			Step1:         "ffmpeg -ss %o -i %s -async 1 -b %bk -s %wx%h -ar 44100 -ac 2 -v 0 -f mp4 -vcodec libx264 -preset superfast -threads 0 -movflags frag_keyframe+empty_moov -",
			Enabled:       models.BoolPtr(false),
		},
	}
}

func migration002DefaultProfiles() Migration {
	return Migration{
		Version:     "002",
		Description: "Insert default transcoding profiles",
		Up: func(tx *gorm.DB) error {
			for _, profile := range DefaultProfiles() {
				var count int64
				if err := tx.Model(&models.TranscodingProfile{}).Where("name = ?", profile.Name).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					continue
				}
				if err := tx.Create(profile).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Down: func(tx *gorm.DB) error {
			names := make([]string, 0, len(DefaultProfiles()))
			for _, profile := range DefaultProfiles() {
				names = append(names, profile.Name)
			}
			return tx.Unscoped().Where("name IN ?", names).Delete(&models.TranscodingProfile{}).Error
		},
	}
}

const directoryIndex = "idx_media_files_folder_parent"

func migration003DirectoryIndex() Migration {
	return Migration{
		Version:     "003",
		Description: "Add composite index for directory listings",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasIndex(&models.MediaFile{}, directoryIndex) {
				return nil
			}
			return tx.Exec("CREATE INDEX " + directoryIndex + " ON media_files (folder_id, parent_path)").Error
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropIndex(&models.MediaFile{}, directoryIndex)
		},
	}
}
