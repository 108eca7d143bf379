package store

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Constructor creates a Store for a given DSN.
// Implementations register themselves with the registry using Register().
type Constructor func(dsn string, logger *log.Logger) (Store, error)

// registry maps driver names to their constructors
var (
	registry      = make(map[string]Constructor)
	registryMutex sync.RWMutex
)

// Register registers a backend constructor.
// This is called from init() functions in backend packages (sqlite, postgres).
//
// Example:
//
//	func init() {
//	    store.Register("sqlite", New)
//	}
func Register(driver string, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("store: Register constructor is nil for driver %s", driver))
	}

	if _, exists := registry[driver]; exists {
		panic(fmt.Sprintf("store: Register called twice for driver %s", driver))
	}

	registry[driver] = constructor
}

// IsRegistered returns true if a constructor is registered for the driver.
func IsRegistered(driver string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, exists := registry[driver]
	return exists
}

// RegisteredDrivers returns all registered driver names, sorted.
func RegisteredDrivers() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	drivers := make([]string, 0, len(registry))
	for d := range registry {
		drivers = append(drivers, d)
	}
	sort.Strings(drivers)
	return drivers
}

// DetectDriver infers the backend from a DSN. URLs with a postgres scheme
// select the postgres backend; everything else is treated as a SQLite file
// path.
func DetectDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// Open opens a store through the registered constructor for driver. An
// empty driver name is detected from the DSN.
func Open(driver, dsn string, logger *log.Logger) (Store, error) {
	if driver == "" {
		driver = DetectDriver(dsn)
	}

	registryMutex.RLock()
	constructor := registry[driver]
	registryMutex.RUnlock()

	if constructor == nil {
		registered := RegisteredDrivers()
		if len(registered) == 0 {
			return nil, fmt.Errorf("%w: %s (no backends imported)", ErrUnknownDriver, driver)
		}
		return nil, fmt.Errorf("%w: %s (registered: %s)", ErrUnknownDriver, driver, strings.Join(registered, ", "))
	}

	st, err := constructor(dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}
	return st, nil
}
