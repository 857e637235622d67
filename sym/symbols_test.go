package sym

import (
	"testing"
	"unicode/utf8"
)

func TestSymbolToNameAndNameToSymbolAreBidirectional(t *testing.T) {
	for symbol, name := range SymbolToName {
		got, ok := NameToSymbol[name]
		if !ok {
			t.Errorf("SymbolToName has %q → %q, but NameToSymbol has no entry for %q", symbol, name, name)
			continue
		}
		if got != symbol {
			t.Errorf("bidirectional mismatch: SymbolToName[%q] = %q, but NameToSymbol[%q] = %q", symbol, name, name, got)
		}
	}

	for name, symbol := range NameToSymbol {
		got, ok := SymbolToName[symbol]
		if !ok {
			t.Errorf("NameToSymbol has %q → %q, but SymbolToName has no entry for %q", name, symbol, symbol)
			continue
		}
		if got != name {
			t.Errorf("bidirectional mismatch: NameToSymbol[%q] = %q, but SymbolToName[%q] = %q", name, symbol, symbol, got)
		}
	}
}

func TestMapsHaveSameSize(t *testing.T) {
	if len(SymbolToName) != len(NameToSymbol) {
		t.Errorf("map size mismatch: SymbolToName has %d entries, NameToSymbol has %d",
			len(SymbolToName), len(NameToSymbol))
	}
}

func TestDescriptionsCoversAllNames(t *testing.T) {
	for name := range NameToSymbol {
		if _, ok := Descriptions[name]; !ok {
			t.Errorf("Descriptions missing entry for name %q", name)
		}
	}
}

func TestDescriptionsHasNoExtraEntries(t *testing.T) {
	for name := range Descriptions {
		if _, ok := NameToSymbol[name]; !ok {
			t.Errorf("Descriptions has entry for %q which is not in NameToSymbol", name)
		}
	}
}

func TestNamesContainsValidEntries(t *testing.T) {
	for i, name := range Names {
		if _, ok := NameToSymbol[name]; !ok {
			t.Errorf("Names[%d] = %q is not in NameToSymbol", i, name)
		}
	}
}

func TestNamesHasNoDuplicates(t *testing.T) {
	seen := make(map[string]int, len(Names))
	for i, name := range Names {
		if prev, ok := seen[name]; ok {
			t.Errorf("Names has duplicate %q at indices %d and %d", name, prev, i)
		}
		seen[name] = i
	}
}

func TestNamesCoversAllSymbols(t *testing.T) {
	if len(Names) != len(NameToSymbol) {
		t.Errorf("Names has %d entries, NameToSymbol has %d", len(Names), len(NameToSymbol))
	}
}

func TestSymbolsAreValidUnicode(t *testing.T) {
	for symbol := range SymbolToName {
		if !utf8.ValidString(symbol) {
			t.Errorf("symbol %q is not valid UTF-8", symbol)
		}
		if utf8.RuneCountInString(symbol) == 0 {
			t.Errorf("symbol for name %q is empty", SymbolToName[symbol])
		}
	}
}

func TestNoDuplicateSymbolValues(t *testing.T) {
	seen := make(map[string]string, len(NameToSymbol))
	for name, symbol := range NameToSymbol {
		if prevName, ok := seen[symbol]; ok {
			t.Errorf("duplicate symbol %q: used by both %q and %q", symbol, prevName, name)
		}
		seen[symbol] = name
	}
}
