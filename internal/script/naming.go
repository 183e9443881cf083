package script

import (
	"fmt"
	"strings"

	"github.com/bayleafwalker/dbchain/internal/version"
)

const (
	scriptExt          = ".sql"
	localizationSuffix = "_localization"
	testDataSuffix     = "_testdata"
)

// MatchCreation reports whether fileName is a creation script
// "{db}_{version}.sql" for database db. ok is false for files that belong to
// something else; err is set when the name has the creation shape but the
// version token does not parse.
func MatchCreation(db, fileName string) (v version.Version, ok bool, err error) {
	token, ok := trimScriptName(db+"_", fileName)
	if !ok || strings.ContainsAny(token, "-_") {
		return version.Version{}, false, nil
	}
	v, err = version.Parse(token)
	if err != nil {
		return version.Version{}, false, fmt.Errorf("%w: %s: %v", ErrInvalidScriptName, fileName, err)
	}
	return v, true, nil
}

// MatchUpgrade reports whether fileName is an upgrade script
// "{db}_{source}-{target}.sql" starting at source. The source token is
// compared numerically, so "1.00" matches a script named for "1.0".
// Localization and test-data companions never match.
func MatchUpgrade(db string, source version.Version, fileName string) (target version.Version, ok bool, err error) {
	token, ok := trimScriptName(db+"_", fileName)
	if !ok {
		return version.Version{}, false, nil
	}
	lower := strings.ToLower(token)
	if strings.HasSuffix(lower, localizationSuffix) || strings.HasSuffix(lower, testDataSuffix) {
		return version.Version{}, false, nil
	}
	from, to, found := strings.Cut(token, "-")
	if !found {
		return version.Version{}, false, nil
	}
	fromVersion, perr := version.Parse(from)
	if perr != nil || !fromVersion.Equal(source) {
		return version.Version{}, false, nil
	}
	target, err = version.Parse(to)
	if err != nil {
		return version.Version{}, false, fmt.Errorf("%w: %s: %v", ErrInvalidScriptName, fileName, err)
	}
	return target, true, nil
}

// TestDataPath returns the companion test-data script of scriptPath.
func TestDataPath(scriptPath string) string {
	return scriptPath[:len(scriptPath)-len(scriptExt)] + testDataSuffix + scriptExt
}

// trimScriptName strips prefix and the .sql extension, both compared
// case-insensitively.
func trimScriptName(prefix, fileName string) (string, bool) {
	if len(fileName) < len(prefix)+len(scriptExt) {
		return "", false
	}
	if !strings.EqualFold(fileName[:len(prefix)], prefix) {
		return "", false
	}
	if !strings.EqualFold(fileName[len(fileName)-len(scriptExt):], scriptExt) {
		return "", false
	}
	return fileName[len(prefix) : len(fileName)-len(scriptExt)], true
}
