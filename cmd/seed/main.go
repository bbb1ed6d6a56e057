package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/mansoorceksport/recgetup/internal/repository"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	adminEmail := flag.String("admin-email", "", "promote (or create) this account to admin")
	adminPassword := flag.String("admin-password", "", "password for a newly created admin account")
	withClasses := flag.Bool("classes", true, "schedule sample classes for the coming week")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		log.Fatalf("Failed to connect to Mongo: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.MongoDB.Database)

	if err := repository.NewMongoPackageRepository(db).SeedDefaultPackages(ctx); err != nil {
		log.Fatalf("Failed to seed packages: %v", err)
	}

	if *withClasses {
		if err := seedClasses(ctx, repository.NewMongoClassRepository(db)); err != nil {
			log.Fatalf("Failed to seed classes: %v", err)
		}
	}

	if *adminEmail != "" {
		if err := seedAdmin(ctx, repository.NewMongoUserRepository(db), *adminEmail, *adminPassword); err != nil {
			log.Fatalf("Failed to seed admin: %v", err)
		}
	}

	log.Println("✓ Seeding complete")
}

// seedClasses schedules one class per tier over the next days, unless upcoming classes already exist
func seedClasses(ctx context.Context, classes *repository.MongoClassRepository) error {
	existing, err := classes.ListUpcomingVisible(ctx, "pkg_gold", time.Now(), 1)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Println("[Seed] Upcoming classes exist, skipping")
		return nil
	}

	day := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	samples := []domain.ScheduledClass{
		{Title: "Open house: warm-ups and breathing", Instructor: "Meera", StartTime: day.Add(13 * time.Hour), PackageIDs: nil},
		{Title: "Bronze: pitch basics", Instructor: "Meera", StartTime: day.Add(37 * time.Hour), PackageIDs: []string{"pkg_bronze", "pkg_silver", "pkg_gold"}},
		{Title: "Silver: keyboard accompaniment", Instructor: "Rahul", StartTime: day.Add(61 * time.Hour), PackageIDs: []string{"pkg_silver", "pkg_gold"}},
		{Title: "Gold masterclass: live performance", Instructor: "Anita", StartTime: day.Add(85 * time.Hour), PackageIDs: []string{"pkg_gold"}},
	}
	for i := range samples {
		class := samples[i]
		class.EndTime = class.StartTime.Add(time.Hour)
		if err := classes.Create(ctx, &class); err != nil {
			return err
		}
		log.Printf("[Seed] Scheduled %q at %s", class.Title, class.StartTime.Format(time.RFC3339))
	}
	return nil
}

func seedAdmin(ctx context.Context, users *repository.MongoUserRepository, email, password string) error {
	user, err := users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		if len(password) < 8 {
			return errors.New("-admin-password of at least 8 characters is required to create the admin")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user = &domain.User{
			Email:        domain.NormalizeEmail(email),
			FirstName:    "Admin",
			PasswordHash: string(hash),
			IsActive:     true,
			Roles:        []string{domain.RoleStudent, domain.RoleAdmin},
		}
		if err := users.Create(ctx, user); err != nil {
			return err
		}
		log.Printf("[Seed] Created admin %s", user.Email)
		return nil
	}
	if err != nil {
		return err
	}
	if err := users.AddRole(ctx, user.ID, domain.RoleAdmin); err != nil {
		return err
	}
	log.Printf("[Seed] Granted admin to %s", user.Email)
	return nil
}
