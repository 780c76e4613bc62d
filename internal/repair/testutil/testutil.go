// Package testutil sets up an isolated Postgres schema and a gin router for
// repair tests. Tests that need the database are skipped when it is not
// reachable.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bitfantasy/nimo-repair/internal/config"
	"github.com/bitfantasy/nimo-repair/internal/middleware"
	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
)

const (
	TestSchema = "test_repair"
	JWTSecret  = "nimo-repair-test-secret"

	TestUserID   = "tech-001"
	TestUserName = "Test Technician"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func loadEnv() {
	if root := projectRoot(); root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB opens a connection bound to a fresh schema, migrates every
// repair table and drops the schema when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := config.GetEnvOrDefault("DB_HOST", "127.0.0.1")
	port := config.GetEnvOrDefault("DB_PORT", "5432")
	user := config.GetEnvOrDefault("DB_USER", "nimo")
	password := config.GetEnvOrDefault("DB_PASSWORD", "nimo123")
	dbname := config.GetEnvOrDefault("DB_NAME", "nimo_repair")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable connect_timeout=3",
		host, port, user, password, dbname)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	sqlSetup, _ := setupDB.DB()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sqlSetup.PingContext(ctx); err != nil {
		sqlSetup.Close()
		t.Skipf("postgres not available: %v", err)
	}

	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano())
	if err := setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)).Error; err != nil {
		sqlSetup.Close()
		t.Fatalf("Failed to create test schema: %v", err)
	}
	sqlSetup.Close()

	// search_path in the DSN so every pooled connection uses the test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			if sqlClean, _ := cleanDB.DB(); sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// TestConfig returns a config with the repair defaults filled in.
func TestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: JWTSecret, Issuer: "nimo-repair-test", AccessTokenExpire: time.Hour},
		Repair: config.RepairConfig{
			BaseURL:           "http://repair.test",
			CompanyName:       "Tech Repair",
			OrderSequence:     "repair.order",
			OrderPrefix:       "RIP",
			CaseSequence:      "repair.case",
			CasePrefix:        "CASE",
			RenewalNoticeDays: 30,
			CurrencyLocale:    "it",
			SweepConcurrency:  2,
		},
	}
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// DefaultTestToken returns a token for the default technician
func DefaultTestToken() string {
	token, _ := middleware.IssueToken(JWTSecret, "nimo-repair-test", TestUserID, TestUserName, "tech@test.com", time.Hour)
	return token
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// Catalog is a minimal seeded catalog.
type Catalog struct {
	Category    *entity.DeviceCategory
	Brand       *entity.DeviceBrand
	Model       *entity.DeviceModel
	Variant     *entity.DeviceVariant
	Received    *entity.State
	Closed      *entity.State
	InProgress  *entity.PublicState
	Done        *entity.PublicState
	WorkType    *entity.WorkType
	Software    *entity.Software
	Antivirus   *entity.Software
	Product     *entity.Product
	Customer    *entity.Customer
	LabPartner  *entity.LabPartner
	DefaultTerm *entity.Term
}

// SeedCatalog creates a small catalog: one device model with a variant, an
// open and a closed state, a work type, two software licences, a product, a
// customer, a lab partner and a default term.
func SeedCatalog(t *testing.T, db *gorm.DB) *Catalog {
	t.Helper()
	c := &Catalog{}
	c.Category = &entity.DeviceCategory{Name: "Smartphone"}
	c.Brand = &entity.DeviceBrand{Name: "Apple"}
	mustCreate(t, db, c.Category, c.Brand)
	c.Model = &entity.DeviceModel{Name: "iPhone 13", BrandID: c.Brand.ID, CategoryID: &c.Category.ID}
	mustCreate(t, db, c.Model)
	c.Variant = &entity.DeviceVariant{Name: "128GB", ModelID: c.Model.ID}
	mustCreate(t, db, c.Variant)

	c.InProgress = &entity.PublicState{Name: "In progress", Sequence: 10}
	c.Done = &entity.PublicState{Name: "Ready for pickup", Sequence: 20}
	mustCreate(t, db, c.InProgress, c.Done)
	c.Received = &entity.State{Name: "Received", Sequence: 10, PublicStateID: &c.InProgress.ID}
	c.Closed = &entity.State{Name: "Delivered", Sequence: 90, IsClosed: true, PublicStateID: &c.Done.ID}
	mustCreate(t, db, c.Received, c.Closed)

	c.WorkType = &entity.WorkType{Name: "Screen replacement", Price: decimal.NewFromInt(50), EstimatedDays: 3}
	c.Software = &entity.Software{Name: "Office", Price: decimal.NewFromInt(20), RenewalRequired: true, DurationMonths: 12}
	c.Antivirus = &entity.Software{Name: "Antivirus", Price: decimal.NewFromInt(15), RenewalRequired: true, DurationMonths: 6}
	c.Product = &entity.Product{Code: "LCD13", Name: "LCD iPhone 13", ListPrice: decimal.NewFromInt(10), Cost: decimal.NewFromInt(6)}
	c.Customer = &entity.Customer{Name: "Mario Rossi", Email: "mario@example.com", Phone: "0212345"}
	c.LabPartner = &entity.LabPartner{Name: "Micro Lab"}
	c.DefaultTerm = &entity.Term{Title: "Standard", Content: "<p>Terms</p>", IsDefault: true}
	mustCreate(t, db, c.WorkType, c.Software, c.Antivirus, c.Product, c.Customer, c.LabPartner, c.DefaultTerm)
	return c
}

// SeedItem creates an available inventory item of the catalog model.
func SeedItem(t *testing.T, db *gorm.DB, c *Catalog, serial string, caseID *string) *entity.InventoryItem {
	t.Helper()
	item := &entity.InventoryItem{
		CategoryID:   c.Category.ID,
		BrandID:      c.Brand.ID,
		ModelID:      c.Model.ID,
		SerialNumber: serial,
		Status:       entity.InventoryAvailable,
		CaseID:       caseID,
		CheckInDate:  time.Now(),
		Active:       true,
		Category:     c.Category,
		Brand:        c.Brand,
		Model:        c.Model,
	}
	item.Name = item.ComputeName()
	if err := db.Omit("Category", "Brand", "Model", "Variant", "Case").Create(item).Error; err != nil {
		t.Fatalf("Failed to seed inventory item: %v", err)
	}
	return item
}

// SeedLoaner creates an available loaner.
func SeedLoaner(t *testing.T, db *gorm.DB, name, serial string) *entity.LoanerDevice {
	t.Helper()
	l := &entity.LoanerDevice{Name: name, SerialNumber: serial, AestheticCondition: entity.ConditionGood, Status: entity.LoanerAvailable}
	mustCreate(t, db, l)
	return l
}

func mustCreate(t *testing.T, db *gorm.DB, values ...interface{}) {
	t.Helper()
	for _, v := range values {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("Failed to seed %T: %v", v, err)
		}
	}
}
